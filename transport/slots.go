// File: transport/slots.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed client slot table. Only the accept loop allocates slots; only the
// handler that took a slot mutates its socket; the reaper reads the
// activity timestamp and sets shouldStop.

package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mcp/internal/sock"
)

type slotState int32

const (
	slotInactive slotState = iota
	slotActive
	slotClosing
)

type clientSlot struct {
	index        int
	state        atomic.Int32
	sock         sock.Socket
	peer         string
	lastActivity atomic.Int64 // monotonic milliseconds
	shouldStop   atomic.Bool
}

func (s *clientSlot) touch(clock func() int64) {
	s.lastActivity.Store(clock())
}

// slotTable owns MaxClients bookkeeping records.
type slotTable struct {
	mu    sync.Mutex
	slots []*clientSlot
	start time.Time // base for the monotonic millisecond clock
}

func newSlotTable(n int) *slotTable {
	t := &slotTable{slots: make([]*clientSlot, n), start: time.Now()}
	for i := range t.slots {
		t.slots[i] = &clientSlot{index: i}
	}
	return t
}

// nowMs is a monotonic millisecond clock (immune to wall-clock jumps).
func (t *slotTable) nowMs() int64 {
	return int64(time.Since(t.start) / time.Millisecond)
}

// acquire finds the first inactive slot and activates it for s. Returns
// nil when the table is full; the caller sheds the connection.
func (t *slotTable) acquire(s sock.Socket, peer string) *clientSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, slot := range t.slots {
		if slotState(slot.state.Load()) != slotInactive {
			continue
		}
		slot.sock = s
		slot.peer = peer
		slot.shouldStop.Store(false)
		slot.touch(t.nowMs)
		slot.state.Store(int32(slotActive))
		return slot
	}
	return nil
}

// release closes the slot's socket and transitions it through Closing
// back to Inactive.
func (t *slotTable) release(slot *clientSlot) {
	slot.state.Store(int32(slotClosing))
	sock.Close(slot.sock)
	slot.sock = sock.Invalid
	slot.state.Store(int32(slotInactive))
}

// active counts slots currently serving a connection.
func (t *slotTable) active() int {
	n := 0
	for _, slot := range t.slots {
		if slotState(slot.state.Load()) == slotActive {
			n++
		}
	}
	return n
}

// forEachActive applies fn to every active slot.
func (t *slotTable) forEachActive(fn func(*clientSlot)) {
	for _, slot := range t.slots {
		if slotState(slot.state.Load()) == slotActive {
			fn(slot)
		}
	}
}
