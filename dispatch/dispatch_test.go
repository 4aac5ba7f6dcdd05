package dispatch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSynchronous_RunsInline(t *testing.T) {
	s := NewSynchronous()
	var ran bool
	s.Dispatch(func() { ran = true })
	assert.True(t, ran)
}

func TestThreaded_RunsConcurrentlyAndJoins(t *testing.T) {
	th := NewThreaded(0)
	var count int32
	for i := 0; i < 5; i++ {
		th.Dispatch(func() {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&count, 1)
		})
	}
	th.Join()
	assert.Equal(t, int32(5), atomic.LoadInt32(&count))
}

func TestThreaded_RespectsMaxConcurrency(t *testing.T) {
	th := NewThreaded(1)
	var concurrent, maxConcurrent int32
	for i := 0; i < 4; i++ {
		th.Dispatch(func() {
			n := atomic.AddInt32(&concurrent, 1)
			for {
				old := atomic.LoadInt32(&maxConcurrent)
				if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
		})
	}
	th.Join()
	assert.Equal(t, int32(1), maxConcurrent)
}

func TestQueued_RunsInOrder(t *testing.T) {
	q := NewQueued(10)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Dispatch(func() { order = append(order, i) })
	}
	q.Join()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.NoError(t, q.Close())
}

func TestQueued_CloseDrainsBeforeStopping(t *testing.T) {
	q := NewQueued(0)
	var ran int32
	for i := 0; i < 3; i++ {
		q.Dispatch(func() { atomic.AddInt32(&ran, 1) })
	}
	assert.NoError(t, q.Close())
	assert.Equal(t, int32(3), ran)
}
