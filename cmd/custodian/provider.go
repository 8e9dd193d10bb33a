package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/custodian/provider"
	"github.com/brojonat/custodian/service/metrics"
	"github.com/brojonat/custodian/service/nats"
	"github.com/brojonat/custodian/service/surface"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

// newProvider builds a provider from the global flags. Interactive providers
// print overlay URLs to stderr and receive page replies over NATS; the
// returned cleanup closes that connection.
func newProvider(c *cli.Context, interactive bool) (*provider.Provider, func(), error) {
	logger := setupLogger(c.String("log-level"))

	var m *metrics.Metrics
	if addr := c.String("metrics-addr"); addr != "" {
		m = metrics.NewMetrics(nil)
		go serveMetrics(addr, logger)
	}

	opts := provider.Options{
		Network:      c.String("network"),
		Server:       c.String("server"),
		AppID:        c.String("app-id"),
		Origin:       c.String("origin"),
		RPCURL:       c.String("rpc-url"),
		PollInterval: c.Duration("poll-interval"),
		Metrics:      m,
		Logger:       logger,
	}

	cleanup := func() {}
	if interactive {
		nc, err := nats.Connect(c.String("nats-url"), "custodian-cli")
		if err != nil {
			return nil, nil, err
		}
		opts.Surface = surface.NewTerminal(c.App.ErrWriter, logger)
		opts.Messages = nats.NewChannel(nc, nats.DefaultPrefix, m, logger)
		cleanup = nc.Close
	}

	p, err := provider.New(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

// commandContext is canceled by the --timeout flag or an interrupt.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "addr", addr, "error", err)
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
