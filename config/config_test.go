// File: config/config_test.go
// Author: momentics <momentics@gmail.com>

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
bind_port = 7000
max_clients = 8
log_level = "debug"

[rate_limit]
enabled = true
quota = 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.BindPort)
	require.Equal(t, 8, cfg.MaxClients)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.RateLimit.Enabled)
	require.Equal(t, 5, cfg.RateLimit.Quota)
	// Untouched keys keep defaults.
	require.Equal(t, Default().MaxMessageSize, cfg.MaxMessageSize)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_clients = -1\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("bind_port = 99999\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestTransportConfigMapping(t *testing.T) {
	cfg := Default()
	cfg.BindPort = 1234
	cfg.IdleTimeoutMs = 5000

	tc := cfg.TransportConfig()
	require.Equal(t, 1234, tc.BindPort)
	require.Equal(t, int64(5000), tc.IdleTimeout.Milliseconds())
	require.Equal(t, cfg.MaxClients, tc.MaxClients)
}
