// File: internal/concurrency/pool.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Work-stealing thread pool. One deque and one arena per worker slot; the
// slot array is sized to the construction-time worker count and never
// reallocated, which is what makes online resize safe.

package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mcp/api"
	"github.com/momentics/hioload-mcp/arena"
)

const (
	shutdownRunning int32 = iota
	shutdownImmediate
	shutdownGraceful
)

const (
	minWorkers = 1

	// Destroy joins each worker with this retry pattern; a worker that
	// cannot be joined is logged and leaked rather than freed under it.
	joinAttempts = 3
	joinInterval = 100 * time.Millisecond

	waitPollInterval = 10 * time.Millisecond
)

// Pool owns maxWorkers slots, of which threadCount are logically running.
type Pool struct {
	mu      sync.RWMutex // structural: logical size, shutdown transitions
	workers []*workerState

	maxWorkers  int
	queueCap    int
	threadCount atomic.Int32 // mirror of the logical size for lock-free reads

	shutdown  atomic.Int32
	destroyed atomic.Bool

	// Long-sleep wake path. Its mutex is deliberately separate from the
	// structural read-write lock; waiting cannot happen under mu.
	sleepMu  sync.Mutex
	sleepGen chan struct{}
	sleepers atomic.Int32

	nextSubmit  atomic.Uint64
	submitted   atomic.Uint64
	completed   atomic.Uint64
	failed      atomic.Uint64
	activeTasks atomic.Int64

	tuner tuner
	log   *logrus.Entry
}

var _ api.Executor = (*Pool)(nil)

// Option customizes pool construction.
type Option func(*Pool)

// WithLogger scopes pool logging to the given entry.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Pool) { p.log = log }
}

// WithArenaBlockSize sets the default block size of every worker arena.
func WithArenaBlockSize(n int) Option {
	return func(p *Pool) {
		for _, w := range p.workers {
			w.arena = arena.New(n)
		}
	}
}

// WithAdjustCooldown overrides the auto-tuner cooldown.
func WithAdjustCooldown(d time.Duration) Option {
	return func(p *Pool) { p.tuner.cooldown = d }
}

// NewPool creates and starts a pool of threadCount workers, each with a
// deque of queueCapacity (rounded up to a power of two). threadCount is
// also the hard ceiling: the pool can shrink and grow back, never exceed it.
func NewPool(threadCount, queueCapacity int, opts ...Option) (*Pool, error) {
	if threadCount <= 0 || queueCapacity <= 0 {
		return nil, api.ErrInvalidParameter
	}
	p := &Pool{
		maxWorkers: threadCount,
		queueCap:   queueCapacity,
		sleepGen:   make(chan struct{}),
		log:        logrus.NewEntry(logrus.StandardLogger()).WithField("component", "pool"),
	}
	p.tuner.cooldown = defaultAdjustCooldown
	p.workers = make([]*workerState, threadCount)
	for i := range p.workers {
		p.workers[i] = &workerState{
			index: i,
			deque: NewDeque(queueCapacity),
			arena: arena.New(0),
			done:  make(chan struct{}),
		}
	}
	for _, o := range opts {
		o(p)
	}
	p.threadCount.Store(int32(threadCount))
	for _, w := range p.workers {
		p.startWorker(w)
	}
	return p, nil
}

func (p *Pool) startWorker(w *workerState) {
	w.shouldExit.Store(false)
	w.done = make(chan struct{})
	w.running.Store(true)
	go p.run(w)
}

// Submit schedules task(arg) on a worker selected round-robin over the
// current logical size. The selection counter is a plain fetch-and-add and
// is never reset on shrink, so distribution over a smaller modulus skews
// slightly until it wraps; accepted.
func (p *Pool) Submit(task api.TaskFunc, arg any) error {
	if task == nil {
		return api.ErrInvalidParameter
	}
	p.mu.RLock()
	if p.shutdown.Load() != shutdownRunning {
		p.mu.RUnlock()
		return api.ErrPoolShuttingDown
	}
	n := int(p.threadCount.Load())
	idx := int(p.nextSubmit.Add(1)-1) % n
	w := p.workers[idx]
	err := w.deque.PushBottom(Task{Fn: task, Arg: arg})
	p.mu.RUnlock()
	if err != nil {
		return err
	}
	p.submitted.Add(1)
	p.wake()
	return nil
}

// NumWorkers returns the current logical worker count.
func (p *Pool) NumWorkers() int {
	return int(p.threadCount.Load())
}

// MaxWorkers returns the fixed slot-array size.
func (p *Pool) MaxWorkers() int { return p.maxWorkers }

// Resize adjusts the logical worker count, clamped to [1, MaxWorkers].
// Shrinking marks the excess workers; they exit at their next idle point.
// Growing restarts exited slots, reusing their deque, arena and counters.
func (p *Pool) Resize(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown.Load() != shutdownRunning {
		return api.ErrPoolShuttingDown
	}
	if n < minWorkers {
		n = minWorkers
	}
	if n > p.maxWorkers {
		n = p.maxWorkers
	}
	cur := int(p.threadCount.Load())
	if n == cur {
		return nil
	}
	if n < cur {
		for i := n; i < cur; i++ {
			p.workers[i].shouldExit.Store(true)
		}
		p.threadCount.Store(int32(n))
		p.wake()
		p.log.WithField("from", cur).WithField("to", n).Info("pool shrunk")
		return nil
	}
	for i := cur; i < n; i++ {
		w := p.workers[i]
		if w.running.Load() {
			// Marked for exit but not yet gone; unmark and keep it.
			w.shouldExit.Store(false)
			select {
			case <-w.done:
				// Lost the race: it exited between the check and the
				// unmark. Restart the slot.
				p.startWorker(w)
			default:
			}
			continue
		}
		p.startWorker(w)
	}
	p.threadCount.Store(int32(n))
	p.log.WithField("from", cur).WithField("to", n).Info("pool grown")
	return nil
}

// Wait polls deque occupancy every 10ms until every deque is empty and no
// task is running, or timeoutMs expires. Negative timeout waits forever.
func (p *Pool) Wait(timeoutMs int64) bool {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		if p.queuedTasks() == 0 && p.activeTasks.Load() == 0 {
			return true
		}
		if timeoutMs >= 0 && time.Now().After(deadline) {
			return false
		}
		time.Sleep(waitPollInterval)
	}
}

func (p *Pool) queuedTasks() int {
	total := 0
	for _, w := range p.workers {
		total += w.deque.Len()
	}
	return total
}

// Stats returns a snapshot of the aggregate counters.
func (p *Pool) Stats() api.PoolStats {
	return api.PoolStats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Active:    uint64(p.activeTasks.Load()),
		Queued:    uint64(p.queuedTasks()),
	}
}

// WorkerStats snapshots the per-slot counters. Slots that never ran report
// Running=false with zero counters; slots that ran and exited keep their
// accumulated totals.
func (p *Pool) WorkerStats() []api.WorkerStats {
	out := make([]api.WorkerStats, len(p.workers))
	for i, w := range p.workers {
		out[i] = api.WorkerStats{
			Index:    i,
			Executed: w.executed.Load(),
			Stolen:   w.stolen.Load(),
			Running:  w.running.Load(),
		}
	}
	return out
}

// Destroy transitions the pool to graceful shutdown, wakes and joins every
// started worker, logs statistics and releases the arenas. A second call
// returns ErrPoolDestroyed without double-freeing.
//
// Each worker exits once its own deque is empty and does not steal after
// shutdown begins, so a task that a racing Submit pushes onto a deque
// whose worker has already exited is never run.
func (p *Pool) Destroy() error {
	if !p.shutdown.CompareAndSwap(shutdownRunning, shutdownGraceful) {
		return api.ErrPoolDestroyed
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	joined := make([]bool, len(p.workers))
	for i, w := range p.workers {
		if !w.running.Load() {
			joined[i] = true
			continue
		}
		for attempt := 0; attempt < joinAttempts; attempt++ {
			p.wake()
			select {
			case <-w.done:
				joined[i] = true
			case <-time.After(joinInterval):
			}
			if joined[i] {
				break
			}
		}
		if !joined[i] {
			// Freeing memory a live goroutine may still touch is worse
			// than leaking the slot.
			p.log.WithError(api.ErrThreadJoinFailed).WithField("worker", i).
				Warn("leaking worker slot")
		}
	}

	stats := p.Stats()
	p.log.WithFields(logrus.Fields{
		"submitted": stats.Submitted,
		"completed": stats.Completed,
		"failed":    stats.Failed,
	}).Info("pool destroyed")
	for i, w := range p.workers {
		if w.executed.Load() > 0 {
			p.log.WithFields(logrus.Fields{
				"worker":   i,
				"executed": w.executed.Load(),
				"stolen":   w.stolen.Load(),
			}).Debug("worker stats")
		}
		if joined[i] {
			w.arena.Destroy()
		}
	}
	p.destroyed.Store(true)
	return nil
}

// sleep parks the caller until wake or the timeout, whichever first.
// Implemented as a generation channel guarded by its own mutex: closing
// the generation broadcasts to all sleepers, Go's substitute for a timed
// condition-variable wait.
func (p *Pool) sleep(d time.Duration) {
	p.sleepMu.Lock()
	gen := p.sleepGen
	p.sleepMu.Unlock()

	p.sleepers.Add(1)
	timer := time.NewTimer(d)
	select {
	case <-gen:
	case <-timer.C:
	}
	timer.Stop()
	p.sleepers.Add(-1)
}

// wake broadcasts to every sleeping worker. Cheap no-op when nobody sleeps.
func (p *Pool) wake() {
	if p.sleepers.Load() == 0 {
		return
	}
	p.sleepMu.Lock()
	close(p.sleepGen)
	p.sleepGen = make(chan struct{})
	p.sleepMu.Unlock()
}
