package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/custodian/service/config"
	"github.com/brojonat/custodian/service/metrics"
	"github.com/brojonat/custodian/service/nats"
	"github.com/brojonat/custodian/service/relay"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting relay",
		"addr", cfg.RelayAddr,
		"network", cfg.Network,
		"server", cfg.ServerURL,
		"log_level", cfg.LogLevel,
	)

	m := metrics.NewMetrics(nil)

	nc, err := nats.Connect(cfg.NATSURL, "custodian-relay")
	if err != nil {
		logger.Error("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
		os.Exit(1)
	}
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	publisher := nats.NewPublisher(nc, nats.DefaultPrefix, m, logger)

	// Only the wallet service's pages may speak through the relay.
	httpServer := relay.New(cfg.RelayAddr, publisher, []string{cfg.ServerURL}, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("relay error", "error", err)
		publisher.Close()
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown relay gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("relay shutdown complete")
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

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
