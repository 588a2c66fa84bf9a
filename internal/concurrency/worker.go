// File: internal/concurrency/worker.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker loop: own deque first (LIFO), then random-victim stealing, then a
// short yield ladder before sleeping on the pool's wake channel.

package concurrency

import (
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mcp/arena"
)

// Yield a few times before parking; parked workers recheck every 100ms.
const (
	maxStealAttempts = 5
	workerSleep      = 100 * time.Millisecond
)

// workerState is the fixed per-slot bookkeeping. Slots live in an array
// sized to maxWorkers and are reused across shrink/grow cycles; counters
// are never zeroed on restart so nothing is double-counted.
type workerState struct {
	index int
	deque *Deque
	arena *arena.Arena

	executed   atomic.Uint64
	stolen     atomic.Uint64
	active     atomic.Bool // currently executing a task
	shouldExit atomic.Bool // set by shrink
	running    atomic.Bool // goroutine alive
	done       chan struct{}
}

// run is the worker goroutine body. The arena is bound to this goroutine
// for ambient handler access and unbound (but not destroyed) at exit, so a
// restarted slot reuses its retained blocks.
func (p *Pool) run(w *workerState) {
	defer func() {
		w.running.Store(false)
		close(w.done)
	}()

	arena.Bind(w.arena)
	defer arena.Unbind()

	stealAttempts := 0
	for {
		if t, ok := w.deque.PopBottom(); ok {
			p.execute(w, t, false)
			stealAttempts = 0
			continue
		}

		switch p.shutdown.Load() {
		case shutdownImmediate:
			return
		case shutdownGraceful:
			// Own deque drained; remaining work on other deques is
			// drained by their owners before they exit too.
			return
		}
		if w.shouldExit.Load() {
			return
		}

		if t, ok := p.stealFrom(w); ok {
			p.execute(w, t, true)
			stealAttempts = 0
			continue
		}

		stealAttempts++
		if stealAttempts < maxStealAttempts {
			runtime.Gosched()
			continue
		}
		p.sleep(workerSleep)
	}
}

// stealFrom picks a uniformly random victim v != w.index among the current
// logical workers and attempts one steal. Aborted steals count as misses
// here; the caller's attempt ladder handles retry pacing.
func (p *Pool) stealFrom(w *workerState) (Task, bool) {
	n := int(p.threadCount.Load())
	if n <= 1 {
		return Task{}, false
	}
	v := rand.IntN(n - 1)
	if v >= w.index {
		v++
	}
	t, outcome := p.workers[v].deque.StealTop()
	if outcome != StealTaken {
		return Task{}, false
	}
	return t, true
}

// execute runs one task with panic isolation. A panicking task counts as
// failed; the worker survives.
func (p *Pool) execute(w *workerState, t Task, stolen bool) {
	p.activeTasks.Add(1)
	w.active.Store(true)

	panicked := true
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.WithField("worker", w.index).WithField("panic", r).
					Error("task panicked")
			}
		}()
		t.Fn(t.Arg)
		panicked = false
	}()

	if panicked {
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
	}
	w.executed.Add(1)
	if stolen {
		w.stolen.Add(1)
	}
	w.active.Store(false)
	p.activeTasks.Add(-1)
}
