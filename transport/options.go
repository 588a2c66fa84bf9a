// File: transport/options.go
// Package transport defines the TCP server configuration and functional
// options.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mcp/api"
	"github.com/momentics/hioload-mcp/control"
)

// Config holds all server transport parameters.
type Config struct {
	BindHost        string        // listen address, "" or "0.0.0.0" = any
	BindPort        int           // 0 = kernel-assigned
	Backlog         int           // listen backlog
	MaxClients      int           // fixed slot-table size
	MaxMessageSize  int           // frames above this close the connection
	IdleTimeout     time.Duration // reaped when idle longer than this
	CleanupInterval time.Duration // reaper scan period
	MonitorInterval time.Duration // pool auto-adjust period
}

// DefaultConfig returns safe defaults for a small deployment.
func DefaultConfig() Config {
	return Config{
		BindHost:        "0.0.0.0",
		BindPort:        9275,
		Backlog:         128,
		MaxClients:      64,
		MaxMessageSize:  1 << 20,
		IdleTimeout:     30 * time.Second,
		CleanupInterval: time.Second,
		MonitorInterval: 30 * time.Second,
	}
}

// Option customizes transport initialization.
type Option func(*TCPTransport)

// WithLogger scopes transport logging to the given entry.
func WithLogger(log *logrus.Entry) Option {
	return func(t *TCPTransport) { t.log = log }
}

// WithErrorCallback installs the upward error callback.
func WithErrorCallback(cb api.ErrorFunc) Option {
	return func(t *TCPTransport) { t.onError = cb }
}

// WithRateLimiter gates accepted connections per peer host.
func WithRateLimiter(l api.Limiter) Option {
	return func(t *TCPTransport) { t.limiter = l }
}

// WithEventJournal records transport events for post-mortem inspection.
func WithEventJournal(j *control.EventJournal) Option {
	return func(t *TCPTransport) { t.journal = j }
}

// WithMetricsRegistry publishes periodic counter snapshots.
func WithMetricsRegistry(mr *control.MetricsRegistry) Option {
	return func(t *TCPTransport) { t.registry = mr }
}
