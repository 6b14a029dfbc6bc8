// Package taskq provides a concurrency-limited asynchronous job scheduler
// for work that executes outside the scheduler and reports back into it.
//
// The Dispatcher owns an in-memory job table, bounds how many jobs run
// simultaneously, promotes pending jobs in strict FIFO order as slots
// free up, tracks per-job progress history, supports cancellation, and
// notifies hooks of lifecycle transitions.
//
// taskq is a library, not a service. Construct a Dispatcher, register
// hooks, and drive it from your own workers:
//
//	d, err := taskq.New(taskq.WithMaxConcurrent(3))
//	j := d.SubmitRaw(ctx, "query-models", input)
//	// ... external work runs, reporting back:
//	d.UpdateProgress(ctx, j.ID, 40, "first model responded")
//	d.Complete(ctx, j.ID, result)
//
// The scheduler never executes or supervises the work itself: callers own
// the goroutines (or processes) doing the work and propagate cancellation
// into them. Persistence is a best-effort mirror (see the store backends
// and the persist package); the in-memory table is authoritative. After a
// restart, the recovery package re-submits interrupted jobs as new jobs.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package taskq
