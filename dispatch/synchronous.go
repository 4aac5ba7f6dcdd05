package dispatch

// Synchronous runs each Task on the caller's own goroutine - typically the
// association's handler goroutine - so the C-STORE response is only
// returned once processing finishes. Simplest variant; the peer's
// association timeout bounds how long processing may take.
type Synchronous struct{}

// NewSynchronous returns a ready-to-use Synchronous dispatcher. It holds no
// state; the zero value also works.
func NewSynchronous() *Synchronous { return &Synchronous{} }

// Dispatch runs task to completion before returning.
func (s *Synchronous) Dispatch(task Task) { task() }

// Join is a no-op: Dispatch never leaves work in flight.
func (s *Synchronous) Join() {}

// Close is a no-op.
func (s *Synchronous) Close() error { return nil }
