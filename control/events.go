// control/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded FIFO journal of transport-level events (errors, lifecycle
// transitions). The transport's error callback feeds it; the tail is
// drained into the shutdown log for post-mortem context.

package control

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Event is one journal record.
type Event struct {
	At     time.Time
	Kind   string
	Detail string
}

// EventJournal keeps the most recent capacity events.
type EventJournal struct {
	mu       sync.Mutex
	q        *queue.Queue
	capacity int
	dropped  uint64
}

// NewEventJournal creates a journal bounded to capacity records.
func NewEventJournal(capacity int) *EventJournal {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventJournal{q: queue.New(), capacity: capacity}
}

// Record appends an event, evicting the oldest past capacity.
func (j *EventJournal) Record(kind, detail string) {
	j.mu.Lock()
	if j.q.Length() >= j.capacity {
		j.q.Remove()
		j.dropped++
	}
	j.q.Add(Event{At: time.Now(), Kind: kind, Detail: detail})
	j.mu.Unlock()
}

// Drain removes and returns all buffered events in FIFO order.
func (j *EventJournal) Drain() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, 0, j.q.Length())
	for j.q.Length() > 0 {
		out = append(out, j.q.Remove().(Event))
	}
	return out
}

// Len reports the buffered event count.
func (j *EventJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.q.Length()
}

// Dropped reports how many events were evicted unread.
func (j *EventJournal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}
