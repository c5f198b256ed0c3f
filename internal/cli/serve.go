package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/aretw0/turnstile/pkg/adapters/http"
	"github.com/aretw0/turnstile/pkg/adapters/mcp"
	"github.com/aretw0/turnstile/pkg/observability"
)

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Options
	// Addr overrides server.addr.
	Addr string
}

// RunServe serves the JSON API until SIGINT/SIGTERM.
func RunServe(opts ServeOptions) error {
	cfg, err := LoadConfig(opts.Options)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	logger := NewLogger(opts.Debug)

	backend, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	engine, err := NewEngine(cfg, backend, gen, logger, opts.Debug, metrics.Hooks())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpAdapter.NewHandler(engine, httpAdapter.WithMetrics(reg), httpAdapter.WithLogger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	logger.Warn("Turnstile server listening", "address", listener.Addr().String(), "store", cfg.Store.Type, "provider", cfg.Generator.Provider)

	return serve(sigCtx, srv, listener, logger)
}

// serve runs srv on listener and shuts it down gracefully when ctx is done.
func serve(ctx context.Context, srv *http.Server, listener net.Listener, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Info("Shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// MCPOptions configures the MCP server.
type MCPOptions struct {
	Options
	Transport string
	Port      int
}

// RunMCP serves the MCP tools over stdio or SSE.
func RunMCP(opts MCPOptions) error {
	cfg, err := LoadConfig(opts.Options)
	if err != nil {
		return err
	}
	logger := NewLogger(opts.Debug)

	backend, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return err
	}

	engine, err := NewEngine(cfg, backend, gen, logger, opts.Debug)
	if err != nil {
		return err
	}
	srv := mcp.NewServer(engine, logger)

	switch opts.Transport {
	case "", "stdio":
		logger.Info("Starting Turnstile MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		sigCtx := NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return srv.ServeSSE(sigCtx, opts.Port)
	}
	return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", opts.Transport)
}
