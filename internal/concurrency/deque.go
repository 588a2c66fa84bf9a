// File: internal/concurrency/deque.go
// Package concurrency implements the per-worker work-stealing deque.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Chase–Lev deque: the owner operates at the bottom, thieves at the top.
// Capacity is a fixed power of two so index masking replaces modulo. Go's
// sync/atomic operations are sequentially consistent, which supplies the
// store/load fence pairs the protocol needs; slots hold atomic pointers so
// a thief can never observe a half-written task.
//
// Bottom-side operations (PushBottom/PopBottom) are serialized by a small
// mutex because submission arrives from arbitrary goroutines, not only the
// owning worker. StealTop stays lock-free and races with the bottom side
// only through the CAS on top.

package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-mcp/api"
)

// Task is a (function, opaque argument) pair, copied by value into deques.
// The deque takes no ownership of Arg; the function owns it once it runs.
type Task struct {
	Fn  api.TaskFunc
	Arg any
}

// StealOutcome is the three-valued result of StealTop. Callers must
// distinguish Empty from Aborted to avoid spinning on permanent emptiness.
type StealOutcome int

const (
	StealTaken StealOutcome = iota
	StealEmpty
	StealAborted
)

// Deque is a bounded lock-free-stealing double-ended queue.
type Deque struct {
	buffer []atomic.Pointer[Task]
	mask   int64

	bottomMu sync.Mutex
	_        [64]byte // padding for hot/cold separation
	top      atomic.Int64
	_        [64]byte
	bottom   atomic.Int64
	_        [64]byte
}

// NewDeque allocates a deque with capacity rounded up to a power of two.
func NewDeque(capacity int) *Deque {
	if capacity <= 0 {
		capacity = 1
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Deque{
		buffer: make([]atomic.Pointer[Task], size),
		mask:   int64(size - 1),
	}
}

// Cap returns the fixed capacity.
func (d *Deque) Cap() int { return len(d.buffer) }

// Len returns the current occupancy. The value is advisory under
// concurrent mutation but always satisfies 0 <= Len <= Cap.
func (d *Deque) Len() int {
	b := d.bottom.Load()
	t := d.top.Load()
	n := b - t
	if n < 0 {
		return 0
	}
	if n > int64(len(d.buffer)) {
		return len(d.buffer)
	}
	return int(n)
}

// PushBottom appends a task at the bottom. Fails with ErrQueueFull when
// bottom-top has reached capacity; the caller sheds load or retries.
func (d *Deque) PushBottom(t Task) error {
	d.bottomMu.Lock()
	defer d.bottomMu.Unlock()

	b := d.bottom.Load()
	top := d.top.Load()
	if b-top >= int64(len(d.buffer)) {
		return api.ErrQueueFull
	}
	task := t
	d.buffer[b&d.mask].Store(&task)
	// Publishing bottom releases the slot write above.
	d.bottom.Store(b + 1)
	return nil
}

// PopBottom removes the most recently pushed task (owner side, LIFO).
func (d *Deque) PopBottom() (Task, bool) {
	d.bottomMu.Lock()
	defer d.bottomMu.Unlock()

	b := d.bottom.Load() - 1
	d.bottom.Store(b)
	top := d.top.Load()

	if b < top {
		// Empty: restore the canonical top == bottom state.
		d.bottom.Store(top)
		return Task{}, false
	}

	slot := d.buffer[b&d.mask].Load()
	if b > top {
		return *slot, true
	}

	// Last element: race thieves via CAS on top.
	won := d.top.CompareAndSwap(top, top+1)
	d.bottom.Store(top + 1)
	if !won {
		return Task{}, false
	}
	return *slot, true
}

// StealTop removes the oldest task (thief side, FIFO). The slot is read
// before the CAS; winning the CAS validates the read.
func (d *Deque) StealTop() (Task, StealOutcome) {
	top := d.top.Load()
	b := d.bottom.Load()
	if top >= b {
		return Task{}, StealEmpty
	}
	slot := d.buffer[top&d.mask].Load()
	if !d.top.CompareAndSwap(top, top+1) {
		return Task{}, StealAborted
	}
	return *slot, StealTaken
}
