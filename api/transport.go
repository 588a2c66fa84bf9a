// File: api/transport.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contract between the TCP server transport and the message dispatcher.

package api

// TransportState enumerates the lifecycle of a server transport.
type TransportState int32

const (
	TransportStopped TransportState = iota
	TransportStarting
	TransportRunning
	TransportStopping
)

func (s TransportState) String() string {
	switch s {
	case TransportStarting:
		return "starting"
	case TransportRunning:
		return "running"
	case TransportStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// MessageFunc is invoked on a pool worker for every decoded frame.
// payload is only valid for the duration of the call; the returned
// response (nil for no response) is owned by the transport, which
// writes it back framed and then drops it. keepOpen=false closes the
// connection after the response is flushed.
type MessageFunc func(payload []byte) (response []byte, keepOpen bool, err error)

// ErrorFunc receives transport-level problems surfaced upward.
type ErrorFunc func(kind error, detail string)

// TransportMetrics is the counter snapshot published on stop.
type TransportMetrics struct {
	ActiveConnections int64
	TotalConnections  uint64
	MessagesReceived  uint64
	MessagesSent      uint64
	BytesReceived     uint64
	BytesSent         uint64
}

// Transport is a framed TCP server running its handlers on an Executor.
type Transport interface {
	// Start binds the listener and spawns the accept, reaper and
	// monitor loops. Starting a running transport returns nil with a
	// logged warning.
	Start() error

	// Stop orchestrates the fixed shutdown sequence. Stopping a
	// stopped transport is a no-op.
	Stop() error

	// State returns the current lifecycle state.
	State() TransportState

	// Metrics returns a snapshot of the transport counters.
	Metrics() TransportMetrics
}
