// File: cmd/mcpserved/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// mcpserved is the MCP server daemon: it wires configuration, the
// work-stealing pool, buffer pool, rate limiter, dispatcher and the TCP
// transport, then serves until interrupted.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-mcp/arena"
	"github.com/momentics/hioload-mcp/config"
	"github.com/momentics/hioload-mcp/control"
	"github.com/momentics/hioload-mcp/internal/concurrency"
	"github.com/momentics/hioload-mcp/internal/logging"
	"github.com/momentics/hioload-mcp/jsonval"
	"github.com/momentics/hioload-mcp/mcp"
	"github.com/momentics/hioload-mcp/pool"
	"github.com/momentics/hioload-mcp/ratelimit"
	"github.com/momentics/hioload-mcp/transport"
)

var (
	version = "dev"
	build   = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "mcpserved",
		Short:         "High-load MCP (JSON-RPC 2.0) server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("mcpserved %s (build %s)\n", version, build)
		},
	}
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel)
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	log := logging.Component("main")

	if cfg.PidFile != "" {
		lock := flock.New(cfg.PidFile + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("pidfile lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another instance holds %s", cfg.PidFile)
		}
		defer lock.Unlock()
		if err := os.WriteFile(cfg.PidFile,
			[]byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
			return fmt.Errorf("write pidfile: %w", err)
		}
		defer os.Remove(cfg.PidFile)
	}

	exec, err := concurrency.NewPool(cfg.ThreadCount, cfg.QueueCapacity,
		concurrency.WithLogger(logging.Component("pool")))
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	bufs, err := pool.NewFixedBytePool(cfg.BufferPoolSize, cfg.BufferCount)
	if err != nil {
		exec.Destroy()
		return fmt.Errorf("create buffer pool: %w", err)
	}

	dispatcher := mcp.NewDispatcher(
		mcp.WithAccessList(mcp.NewAccessList(true)),
		mcp.WithDispatchLogger(logging.Component("dispatch")),
	)
	registerBuiltins(dispatcher)

	journal := control.NewEventJournal(512)
	registry := control.NewMetricsRegistry()

	opts := []transport.Option{
		transport.WithLogger(logging.Component("transport")),
		transport.WithEventJournal(journal),
		transport.WithMetricsRegistry(registry),
		transport.WithErrorCallback(func(kind error, detail string) {
			log.WithField("kind", kind).Warn(detail)
		}),
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, transport.WithRateLimiter(ratelimit.New(ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Window:   time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond,
			Quota:    cfg.RateLimit.Quota,
		})))
	}

	tr, err := transport.NewTCPTransport(cfg.TransportConfig(), exec, bufs,
		dispatcher.HandleMessage, opts...)
	if err != nil {
		exec.Destroy()
		bufs.Destroy()
		return fmt.Errorf("create transport: %w", err)
	}
	if err := tr.Start(); err != nil {
		exec.Destroy()
		bufs.Destroy()
		return fmt.Errorf("start transport: %w", err)
	}
	log.WithField("version", version).Info("mcpserved running")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received")
		return tr.Stop()
	})
	return g.Wait()
}

// registerBuiltins adds the server/info method and a demonstration echo
// tool; real deployments register their own tool tables here.
func registerBuiltins(d *mcp.Dispatcher) {
	started := time.Now().UTC().Format(time.RFC3339)
	d.Register("server/info", func(_ *jsonval.Node, _ *arena.Arena) ([]byte, error) {
		info := fmt.Sprintf(
			`{"name":"mcpserved","version":%q,"build":%q,"started_at":%q}`,
			version, build, started)
		return []byte(info), nil
	})

	d.Tools().Register(mcp.Tool{
		Name:        "echo",
		Description: "returns its arguments unchanged",
		Fn: func(args *jsonval.Node, _ *arena.Arena) ([]byte, error) {
			if args == nil {
				return []byte("null"), nil
			}
			return jsonval.Stringify(args), nil
		},
	})
}
