// File: transport/reaper.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Background loops: the idle-connection reaper and the pool monitor.

package transport

import (
	"time"

	"github.com/momentics/hioload-mcp/internal/sock"
)

// reaperLoop scans active slots every cleanup interval. A slot idle past
// the timeout is marked and its socket shut down; the owning handler
// observes the error on its next I/O call and releases the slot.
func (t *TCPTransport) reaperLoop() {
	defer close(t.reaperDone)
	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()

	for t.cleanup.Load() {
		select {
		case <-ticker.C:
		case <-t.loopStop:
			return
		}
		now := t.slots.nowMs()
		idleMs := t.cfg.IdleTimeout.Milliseconds()
		t.slots.forEachActive(func(s *clientSlot) {
			if now-s.lastActivity.Load() <= idleMs {
				return
			}
			if s.shouldStop.Swap(true) {
				return // already being torn down
			}
			t.log.WithField("peer", s.peer).Info("reaping idle connection")
			t.recordEvent("idle_timeout", s.peer)
			sock.Shutdown(s.sock)
		})
	}
}

// monitorLoop periodically auto-adjusts the pool and publishes counters.
func (t *TCPTransport) monitorLoop() {
	defer close(t.monitorDone)
	ticker := time.NewTicker(t.cfg.MonitorInterval)
	defer ticker.Stop()

	type adjuster interface{ SmartAdjust() bool }

	for t.cleanup.Load() {
		select {
		case <-ticker.C:
		case <-t.loopStop:
			return
		}
		if tuner, ok := t.exec.(adjuster); ok {
			tuner.SmartAdjust()
		}
		t.publishMetrics()
	}
}

func (t *TCPTransport) publishMetrics() {
	if t.registry == nil {
		return
	}
	m := t.Metrics()
	t.registry.Set("transport.active_connections", m.ActiveConnections)
	t.registry.Set("transport.total_connections", m.TotalConnections)
	t.registry.Set("transport.messages_received", m.MessagesReceived)
	t.registry.Set("transport.messages_sent", m.MessagesSent)
	t.registry.Set("pool.stats", t.exec.Stats())
	t.registry.Set("pool.workers", t.exec.NumWorkers())
}
