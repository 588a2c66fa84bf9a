// File: config/config.go
// Package config loads the server configuration from TOML with defaults
// and validation.
// Author: momentics <momentics@gmail.com>

package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/momentics/hioload-mcp/transport"
)

// RateLimit configures the per-client admission limiter.
type RateLimit struct {
	Enabled  bool `toml:"enabled"`
	Capacity int  `toml:"capacity"`
	WindowMs int  `toml:"window_ms"`
	Quota    int  `toml:"quota"`
}

// Config is the full server configuration.
type Config struct {
	BindHost       string `toml:"bind_host"`
	BindPort       int    `toml:"bind_port"`
	MaxClients     int    `toml:"max_clients"`
	MaxMessageSize int    `toml:"max_message_size"`
	IdleTimeoutMs  int    `toml:"idle_timeout_ms"`

	ThreadCount   int `toml:"thread_count"`
	QueueCapacity int `toml:"queue_capacity"`

	BufferPoolSize int `toml:"buffer_pool_size"` // bytes per buffer
	BufferCount    int `toml:"buffer_count"`

	LogLevel string `toml:"log_level"`
	PidFile  string `toml:"pid_file"`

	RateLimit RateLimit `toml:"rate_limit"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		BindHost:       "0.0.0.0",
		BindPort:       9275,
		MaxClients:     64,
		MaxMessageSize: 1 << 20,
		IdleTimeoutMs:  30000,
		ThreadCount:    runtime.NumCPU(),
		QueueCapacity:  1024,
		BufferPoolSize: 64 * 1024,
		BufferCount:    128,
		LogLevel:       "info",
		RateLimit: RateLimit{
			Enabled:  false,
			Capacity: 1024,
			WindowMs: 1000,
			Quota:    100,
		},
	}
}

// Load merges the TOML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	switch {
	case c.BindPort < 0 || c.BindPort > 65535:
		return fmt.Errorf("bind_port out of range: %d", c.BindPort)
	case c.MaxClients <= 0:
		return fmt.Errorf("max_clients must be positive")
	case c.MaxMessageSize <= 0:
		return fmt.Errorf("max_message_size must be positive")
	case c.IdleTimeoutMs <= 0:
		return fmt.Errorf("idle_timeout_ms must be positive")
	case c.ThreadCount <= 0:
		return fmt.Errorf("thread_count must be positive")
	case c.QueueCapacity <= 0:
		return fmt.Errorf("queue_capacity must be positive")
	case c.BufferPoolSize <= 0 || c.BufferCount <= 0:
		return fmt.Errorf("buffer pool sizing must be positive")
	}
	return nil
}

// TransportConfig maps the file fields onto the transport configuration.
func (c Config) TransportConfig() transport.Config {
	tc := transport.DefaultConfig()
	tc.BindHost = c.BindHost
	tc.BindPort = c.BindPort
	tc.MaxClients = c.MaxClients
	tc.MaxMessageSize = c.MaxMessageSize
	tc.IdleTimeout = time.Duration(c.IdleTimeoutMs) * time.Millisecond
	return tc
}
