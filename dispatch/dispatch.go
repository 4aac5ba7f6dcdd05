// Package dispatch implements the three pluggable dispatch variants of
// spec component G: Synchronous (runs on the caller's goroutine), Threaded
// (one goroutine per dispatched patient, optionally capped via a
// golang.org/x/sync/semaphore.Weighted), and Queued (a single long-lived
// worker draining an in-memory FIFO). All three share the same Dispatcher
// contract so node.Node can swap between them via configuration alone.
package dispatch

// Task is a unit of dispatched work: build the InputContainer, run the
// user's process function, send the output, release the slot. The
// dispatcher only owns when and on which goroutine this runs - not what it
// does, which keeps this package independent of pipeline/output.
type Task func()

// Dispatcher is the shared contract every variant implements.
type Dispatcher interface {
	// Dispatch schedules task according to the variant's policy. Synchronous
	// blocks until task returns; Threaded and Queued return without waiting
	// for task, though a capped Threaded blocks until a slot frees and
	// Queued blocks while its queue is full.
	Dispatch(task Task)
	// Join blocks until every previously dispatched task has completed.
	Join()
	// Close stops accepting new work, then joins any in-flight tasks.
	Close() error
}
