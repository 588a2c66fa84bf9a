// File: transport/server.go
// Package transport implements the framed TCP server: accept loop, slot
// table, idle reaper, pool monitor, and graceful shutdown.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One accept goroutine owns the listening socket. Every accepted
// connection takes a slot and a handler task on the executor; the handler
// serializes reads and writes for its connection, so request/response
// pairing holds per connection and nothing is ordered across connections.

package transport

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mcp/api"
	"github.com/momentics/hioload-mcp/arena"
	"github.com/momentics/hioload-mcp/control"
	"github.com/momentics/hioload-mcp/internal/sock"
)

// TCPTransport is the framed TCP server. Create with NewTCPTransport,
// drive with Start/Stop.
type TCPTransport struct {
	cfg     Config
	exec    api.Executor
	bufPool api.BytePool
	limiter api.Limiter

	state    atomic.Int32
	listener sock.Socket
	stopPipe *sock.StopPipe
	slots    *slotTable

	acceptDone  chan struct{}
	reaperDone  chan struct{}
	monitorDone chan struct{}
	loopStop    chan struct{}
	cleanup     atomic.Bool

	onMessage api.MessageFunc
	onError   api.ErrorFunc
	journal   *control.EventJournal
	registry  *control.MetricsRegistry

	totalConns  atomic.Uint64
	activeConns atomic.Int64
	msgsIn      atomic.Uint64
	msgsOut     atomic.Uint64
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64

	log *logrus.Entry
}

var _ api.Transport = (*TCPTransport)(nil)

// NewTCPTransport wires the transport over an executor and buffer pool.
// The transport takes ownership of both: Stop destroys them.
func NewTCPTransport(cfg Config, exec api.Executor, bufPool api.BytePool,
	onMessage api.MessageFunc, opts ...Option) (*TCPTransport, error) {
	if exec == nil || bufPool == nil || onMessage == nil {
		return nil, api.ErrInvalidParameter
	}
	if cfg.MaxClients <= 0 || cfg.MaxMessageSize <= 0 {
		return nil, api.ErrInvalidParameter
	}
	t := &TCPTransport{
		cfg:       cfg,
		exec:      exec,
		bufPool:   bufPool,
		onMessage: onMessage,
		listener:  sock.Invalid,
		slots:     newSlotTable(cfg.MaxClients),
		log:       logrus.NewEntry(logrus.StandardLogger()).WithField("component", "transport"),
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// State returns the current lifecycle state.
func (t *TCPTransport) State() api.TransportState {
	return api.TransportState(t.state.Load())
}

// Port reports the bound listener port (useful with BindPort 0).
func (t *TCPTransport) Port() (int, error) {
	if t.State() != api.TransportRunning {
		return 0, api.ErrTransportStopped
	}
	return sock.ListenerPort(t.listener)
}

// Metrics returns a counter snapshot.
func (t *TCPTransport) Metrics() api.TransportMetrics {
	return api.TransportMetrics{
		ActiveConnections: t.activeConns.Load(),
		TotalConnections:  t.totalConns.Load(),
		MessagesReceived:  t.msgsIn.Load(),
		MessagesSent:      t.msgsOut.Load(),
		BytesReceived:     t.bytesIn.Load(),
		BytesSent:         t.bytesOut.Load(),
	}
}

// Start binds the listener and spawns the accept, reaper and monitor
// loops. Calling Start on a running transport succeeds with a warning.
func (t *TCPTransport) Start() error {
	if !t.state.CompareAndSwap(int32(api.TransportStopped), int32(api.TransportStarting)) {
		if t.State() == api.TransportRunning {
			t.log.Warn("start called on a running transport")
			return nil
		}
		return api.ErrTransportStopped
	}

	ln, err := sock.CreateListener(t.cfg.BindHost, t.cfg.BindPort, t.cfg.Backlog)
	if err != nil {
		t.state.Store(int32(api.TransportStopped))
		return err
	}
	pipe, err := sock.NewStopPipe()
	if err != nil {
		sock.Close(ln)
		t.state.Store(int32(api.TransportStopped))
		return err
	}
	t.listener = ln
	t.stopPipe = pipe
	t.acceptDone = make(chan struct{})
	t.reaperDone = make(chan struct{})
	t.monitorDone = make(chan struct{})
	t.loopStop = make(chan struct{})
	t.cleanup.Store(true)
	t.state.Store(int32(api.TransportRunning))

	go t.acceptLoop()
	go t.reaperLoop()
	go t.monitorLoop()

	t.log.WithFields(logrus.Fields{
		"host":        t.cfg.BindHost,
		"port":        t.cfg.BindPort,
		"max_clients": t.cfg.MaxClients,
	}).Info("transport started")
	return nil
}

// Stop orchestrates the fixed shutdown order: interrupt accept, join the
// accept goroutine, stop reaper and monitor, stop the handlers, drain and
// destroy the pool, then free slots, buffers and sockets. Stopping a
// stopped transport is a no-op.
func (t *TCPTransport) Stop() error {
	if !t.state.CompareAndSwap(int32(api.TransportRunning), int32(api.TransportStopping)) {
		if t.State() == api.TransportStopped {
			t.log.Debug("stop called on a stopped transport")
			return nil
		}
		return api.ErrTransportStopped
	}

	// Unblock accept: the self-pipe wakes the poll, and shutting down the
	// listener makes any raced accept fail fast.
	t.stopPipe.Interrupt()
	sock.Shutdown(t.listener)
	<-t.acceptDone

	t.cleanup.Store(false)
	close(t.loopStop)
	<-t.reaperDone
	<-t.monitorDone

	// Handlers observe the shutdown through their socket erroring out and
	// release their slots; closing the descriptor is theirs to do.
	t.slots.forEachActive(func(s *clientSlot) {
		s.shouldStop.Store(true)
		sock.Shutdown(s.sock)
	})

	t.exec.Wait(2000)
	if err := t.exec.Destroy(); err != nil && !errors.Is(err, api.ErrPoolDestroyed) {
		t.log.WithError(err).Warn("pool destroy failed")
	}

	t.bufPool.Destroy()
	sock.Close(t.listener)
	t.listener = sock.Invalid
	t.stopPipe.Close()
	t.state.Store(int32(api.TransportStopped))

	m := t.Metrics()
	t.log.WithFields(logrus.Fields{
		"connections":       m.TotalConnections,
		"messages_received": m.MessagesReceived,
		"messages_sent":     m.MessagesSent,
	}).Info("transport stopped")
	if t.journal != nil {
		for _, ev := range t.journal.Drain() {
			t.log.WithField("kind", ev.Kind).WithField("at", ev.At).
				Debug(ev.Detail)
		}
	}
	return nil
}

// acceptLoop runs until the stop pipe interrupts it.
func (t *TCPTransport) acceptLoop() {
	defer close(t.acceptDone)
	for {
		conn, peer, err := sock.Accept(t.listener, t.stopPipe)
		if err != nil {
			if errors.Is(err, sock.ErrInterrupted) ||
				t.State() != api.TransportRunning {
				return
			}
			t.surfaceError(api.ErrSocket, err.Error())
			continue
		}

		if t.limiter != nil && !t.limiter.Check(peerHost(peer)) {
			t.recordEvent("rate_limited", peer)
			sock.Close(conn)
			continue
		}

		slot := t.slots.acquire(conn, peer)
		if slot == nil {
			t.log.WithField("peer", peer).Warn("slot table full; shedding connection")
			t.recordEvent("load_shed", peer)
			sock.Close(conn)
			continue
		}
		t.totalConns.Add(1)
		t.activeConns.Add(1)

		if err := t.exec.Submit(t.handleClient, slot); err != nil {
			t.log.WithError(err).WithField("peer", peer).Warn("handler submit failed")
			t.recordEvent("submit_failed", peer)
			t.slots.release(slot)
			t.activeConns.Add(-1)
		}
	}
}

// handleClient services one connection for its lifetime on a pool worker.
func (t *TCPTransport) handleClient(arg any) {
	slot := arg.(*clientSlot)
	defer func() {
		t.slots.release(slot)
		t.activeConns.Add(-1)
	}()

	if err := sock.SetNoDelay(slot.sock); err != nil {
		t.log.WithField("peer", slot.peer).Debug("TCP_NODELAY failed")
	}

	for !slot.shouldStop.Load() {
		length, err := readFrameHeader(slot.sock, t.cfg.MaxMessageSize)
		if err != nil {
			t.frameError(slot, err)
			return
		}

		frame, pooled, err := t.acquireFrame(length)
		if err != nil {
			t.surfaceError(api.ErrAllocationFailed, err.Error())
			return
		}
		if err := sock.RecvExact(slot.sock, frame); err != nil {
			t.releaseFrame(frame, pooled)
			t.frameError(slot, err)
			return
		}
		// Idle timeout is measured from the last completed read; writes
		// below do not refresh it.
		slot.touch(t.slots.nowMs)
		t.msgsIn.Add(1)
		t.bytesIn.Add(uint64(FrameHeaderSize + length))

		// Fresh arena cycle for this message; the parse tree dies here
		// on the next iteration.
		if arena.ExistsOnCurrentThread() {
			arena.Current().Reset()
		}
		resp, keepOpen, err := t.onMessage(frame)
		t.releaseFrame(frame, pooled)
		if err != nil {
			// Dispatch-level failure drops the message, not the
			// connection.
			t.recordEvent("dispatch_error", err.Error())
			continue
		}
		if resp != nil {
			if err := writeFrame(slot.sock, resp); err != nil {
				t.frameError(slot, err)
				return
			}
			t.msgsOut.Add(1)
			t.bytesOut.Add(uint64(FrameHeaderSize + len(resp)))
		}
		if !keepOpen {
			return
		}
	}
}

// acquireFrame takes a pooled buffer when the frame fits, otherwise heap
// allocates ad hoc (a logged pool miss).
func (t *TCPTransport) acquireFrame(length int) ([]byte, bool, error) {
	if length <= t.bufPool.BufferSize() {
		if buf, err := t.bufPool.Acquire(); err == nil {
			return buf[:length], true, nil
		}
		t.log.Debug("buffer pool exhausted; heap frame")
	} else {
		t.log.WithField("len", length).Debug("oversized frame; heap allocation")
	}
	return make([]byte, length), false, nil
}

func (t *TCPTransport) releaseFrame(frame []byte, pooled bool) {
	if pooled {
		t.bufPool.Release(frame[:cap(frame)])
	}
}

// frameError classifies a read/write failure: peer closure during or
// between frames releases quietly, everything else surfaces.
func (t *TCPTransport) frameError(slot *clientSlot, err error) {
	switch {
	case errors.Is(err, sock.ErrConnectionClosed):
		t.recordEvent("peer_closed", slot.peer)
	case errors.Is(err, api.ErrFrameTooLarge):
		t.surfaceError(api.ErrFrameTooLarge, fmt.Sprintf("%s: %v", slot.peer, err))
	case slot.shouldStop.Load():
		// Reaper or shutdown interrupted the socket; expected.
		t.recordEvent("connection_stopped", slot.peer)
	default:
		t.surfaceError(api.ErrSocket, fmt.Sprintf("%s: %v", slot.peer, err))
	}
}

func (t *TCPTransport) surfaceError(kind error, detail string) {
	t.recordEvent(kind.Error(), detail)
	if t.onError != nil {
		t.onError(kind, detail)
	}
}

func (t *TCPTransport) recordEvent(kind, detail string) {
	if t.journal != nil {
		t.journal.Record(kind, detail)
	}
}

func peerHost(peer string) string {
	if host, _, err := net.SplitHostPort(peer); err == nil {
		return host
	}
	return peer
}
