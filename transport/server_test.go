// File: transport/server_test.go
// Author: momentics <momentics@gmail.com>

//go:build linux || darwin

package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mcp/api"
	"github.com/momentics/hioload-mcp/control"
	"github.com/momentics/hioload-mcp/internal/concurrency"
	"github.com/momentics/hioload-mcp/pool"
)

func newTestTransport(t *testing.T, handler api.MessageFunc,
	mutate func(*Config), opts ...Option) (*TCPTransport, string) {
	t.Helper()

	exec, err := concurrency.NewPool(4, 256)
	require.NoError(t, err)
	bufs, err := pool.NewFixedBytePool(4096, 32)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.BindHost = "127.0.0.1"
	cfg.BindPort = 0
	if mutate != nil {
		mutate(&cfg)
	}

	tr, err := NewTCPTransport(cfg, exec, bufs, handler, opts...)
	require.NoError(t, err)
	require.NoError(t, tr.Start())
	t.Cleanup(func() { tr.Stop() })

	port, err := tr.Port()
	require.NoError(t, err)
	return tr, fmt.Sprintf("127.0.0.1:%d", port)
}

func sendFrame(t *testing.T, conn net.Conn, payload []byte) {
	t.Helper()
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	_, err := conn.Write(hdr[:])
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func readFrame(conn net.Conn) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func echoHandler(payload []byte) ([]byte, bool, error) {
	resp := make([]byte, len(payload))
	copy(resp, payload)
	return resp, true, nil
}

func TestTransport_EchoRoundTrip(t *testing.T) {
	tr, addr := newTestTransport(t, echoHandler, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 10; i++ {
		msg := []byte(fmt.Sprintf("message %d", i))
		sendFrame(t, conn, msg)
		got, err := readFrame(conn)
		require.NoError(t, err)
		require.Equal(t, msg, got)
	}

	m := tr.Metrics()
	require.Equal(t, uint64(10), m.MessagesReceived)
	require.Equal(t, uint64(10), m.MessagesSent)
	require.Equal(t, uint64(1), m.TotalConnections)
}

func TestTransport_FrameSizeBoundary(t *testing.T) {
	const limit = 1024
	journal := control.NewEventJournal(16)
	_, addr := newTestTransport(t, echoHandler, func(c *Config) {
		c.MaxMessageSize = limit
	}, WithEventJournal(journal))

	// A frame of exactly the limit is accepted.
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	sendFrame(t, conn, make([]byte, limit))
	got, err := readFrame(conn)
	require.NoError(t, err)
	require.Len(t, got, limit)

	// limit+1 closes the connection.
	conn2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn2.Close()
	sendFrame(t, conn2, make([]byte, limit+1))
	conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = readFrame(conn2)
	require.Error(t, err)
}

func TestTransport_NoResponseAndClose(t *testing.T) {
	handler := func(payload []byte) ([]byte, bool, error) {
		if string(payload) == "quit" {
			return []byte("bye"), false, nil
		}
		return nil, true, nil // notification-style: no response
	}
	_, addr := newTestTransport(t, handler, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	sendFrame(t, conn, []byte("silent"))
	sendFrame(t, conn, []byte("quit"))
	got, err := readFrame(conn)
	require.NoError(t, err)
	require.Equal(t, "bye", string(got))

	// keepOpen=false: the server closes after the flush.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = readFrame(conn)
	require.Error(t, err)
}

func TestTransport_IdleReaper(t *testing.T) {
	tr, addr := newTestTransport(t, echoHandler, func(c *Config) {
		c.IdleTimeout = 200 * time.Millisecond
		c.CleanupInterval = 50 * time.Millisecond
	})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler time to take the slot.
	deadline := time.Now().Add(2 * time.Second)
	for tr.Metrics().ActiveConnections == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, int64(1), tr.Metrics().ActiveConnections)

	// Send nothing past the timeout: the reaper shuts the socket down,
	// the handler exits, the slot returns to inactive.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err = readFrame(conn)
	require.Error(t, err)

	deadline = time.Now().Add(2 * time.Second)
	for tr.Metrics().ActiveConnections != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, int64(0), tr.Metrics().ActiveConnections)
}

func TestTransport_LoadShedding(t *testing.T) {
	block := make(chan struct{})
	handler := func(payload []byte) ([]byte, bool, error) {
		<-block
		return nil, true, nil
	}
	defer close(block)

	tr, addr := newTestTransport(t, handler, func(c *Config) {
		c.MaxClients = 1
	})

	conn1, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn1.Close()
	sendFrame(t, conn1, []byte("hold"))

	deadline := time.Now().Add(2 * time.Second)
	for tr.Metrics().ActiveConnections == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// Second connection finds no slot and is closed immediately.
	conn2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn2.Close()
	conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = readFrame(conn2)
	require.Error(t, err)
	require.Equal(t, int64(1), tr.Metrics().ActiveConnections)
}

func TestTransport_DoubleStop(t *testing.T) {
	tr, _ := newTestTransport(t, echoHandler, nil)
	require.NoError(t, tr.Stop())
	require.Equal(t, api.TransportStopped, tr.State())
	// Second stop is a no-op.
	require.NoError(t, tr.Stop())
}

func TestTransport_StartWhileRunning(t *testing.T) {
	tr, _ := newTestTransport(t, echoHandler, nil)
	require.NoError(t, tr.Start())
	require.Equal(t, api.TransportRunning, tr.State())
}

func TestTransport_ShutdownUnderLoad(t *testing.T) {
	tr, addr := newTestTransport(t, echoHandler, func(c *Config) {
		c.MaxClients = 32
	})

	const clients = 16
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return
			}
			defer conn.Close()
			for {
				select {
				case <-stop:
					return
				default:
				}
				var hdr [4]byte
				msg := []byte("tick")
				binary.BigEndian.PutUint32(hdr[:], uint32(len(msg)))
				if _, err := conn.Write(hdr[:]); err != nil {
					return
				}
				if _, err := conn.Write(msg); err != nil {
					return
				}
				conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				if _, err := readFrame(conn); err != nil {
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}

	time.Sleep(300 * time.Millisecond)
	start := time.Now()
	require.NoError(t, tr.Stop())
	require.Less(t, time.Since(start), 5*time.Second)
	close(stop)
	wg.Wait()

	m := tr.Metrics()
	require.Greater(t, m.MessagesReceived, uint64(0))
	// A request caught mid-flight by the socket shutdown may lose its
	// response; received is the upper bound.
	require.GreaterOrEqual(t, m.MessagesReceived, m.MessagesSent)
	require.Equal(t, int64(0), m.ActiveConnections)
}

func TestTransport_RateLimiterGates(t *testing.T) {
	denyAll := limiterFunc(func(string) bool { return false })
	_, addr := newTestTransport(t, echoHandler, nil, WithRateLimiter(denyAll))

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = readFrame(conn)
	require.Error(t, err)
}

type limiterFunc func(string) bool

func (f limiterFunc) Check(id string) bool { return f(id) }
