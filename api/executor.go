// File: api/executor.go
// Package api
// Author: momentics <momentics@gmail.com>
//
// Executor contract for parallel task dispatch on the work-stealing pool.

package api

// TaskFunc is the unit of work submitted to an Executor. The argument is
// opaque to the pool; the submitter keeps it live until the function runs,
// after which the function owns it.
type TaskFunc func(arg any)

// PoolStats aggregates pool-wide counters.
type PoolStats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	Active    uint64
	Queued    uint64
}

// WorkerStats reports per-worker counters. Executed includes stolen tasks.
type WorkerStats struct {
	Index    int
	Executed uint64
	Stolen   uint64
	Running  bool
}

// Executor abstracts the work-stealing thread pool.
type Executor interface {
	// Submit schedules task(arg) for execution on some worker.
	// Fails with ErrPoolShuttingDown after shutdown began and with
	// ErrQueueFull when the selected deque is at capacity.
	Submit(task TaskFunc, arg any) error

	// NumWorkers returns the current logical worker count.
	NumWorkers() int

	// Resize adjusts the concurrency at runtime, clamped to
	// [1, max workers fixed at construction].
	Resize(n int) error

	// Wait polls until all deques are empty or timeoutMs elapses.
	// A negative timeout waits indefinitely. Reports whether the
	// pool drained.
	Wait(timeoutMs int64) bool

	// Stats returns a snapshot of the aggregate counters.
	Stats() PoolStats

	// Destroy initiates graceful shutdown, joins workers and frees
	// resources. Second call returns ErrPoolDestroyed.
	Destroy() error
}
