package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Threaded runs each dispatched Task on a fresh goroutine, so the caller
// (the C-STORE handler) can return immediately with 0x0000 while the
// patient's process function runs in parallel with other patients'. An
// optional cap (NewThreaded's maxConcurrency) limits how many Tasks run at once via a weighted
// semaphore; zero means unbounded, matching the spec's "bounded only by
// live patients".
type Threaded struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewThreaded returns a Threaded dispatcher. maxConcurrency <= 0 means no
// cap on simultaneously running Tasks.
func NewThreaded(maxConcurrency int64) *Threaded {
	t := &Threaded{}
	if maxConcurrency > 0 {
		t.sem = semaphore.NewWeighted(maxConcurrency)
	}
	return t
}

// Dispatch starts task on a new goroutine and returns without waiting for
// it. With a concurrency cap, Dispatch first blocks until a semaphore slot
// is free. join_threads (Join) is the primitive callers use to wait for it, e.g. at
// shutdown or in tests.
func (t *Threaded) Dispatch(task Task) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	if t.sem != nil {
		_ = t.sem.Acquire(context.Background(), 1)
	}

	go func() {
		defer t.wg.Done()
		if t.sem != nil {
			defer t.sem.Release(1)
		}
		task()
	}()
}

// Join blocks until every dispatched Task currently running has returned.
func (t *Threaded) Join() { t.wg.Wait() }

// Close stops accepting new Tasks and joins every in-flight one.
func (t *Threaded) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
	return nil
}
