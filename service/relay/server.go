// Package relay accepts cross-context messages from the wallet service's
// pages over HTTP and republishes them on NATS, where command line hosts
// pick them up. The sender's origin is taken from the HTTP Origin header.
package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/custodian/service/metrics"
	"github.com/brojonat/custodian/service/nats"
	"github.com/brojonat/custodian/service/surface"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP message relay.
type Server struct {
	addr      string
	publisher nats.Publisher
	allowed   map[string]bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a relay that publishes through publisher. Messages are only
// accepted from allowedOrigins; when the list is empty any origin is
// accepted. The metrics is optional - if nil, the metrics endpoint is not
// served.
func New(addr string, publisher nats.Publisher, allowedOrigins []string, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			allowed[surface.Origin(o)] = true
		}
	}
	return &Server{
		addr:      addr,
		publisher: publisher,
		allowed:   allowed,
		metrics:   m,
		logger:    logger,
	}
}

// Handler returns the relay's routes wrapped in its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /messages/{event}",
		metrics.HTTPMetricsMiddleware(s.metrics, "/messages")(handlePostMessage(s.publisher, s.allowed, s.logger)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting relay", "addr", s.addr, "allowed_origins", len(s.allowed))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("relay failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server and closes the publisher.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down relay")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if s.publisher != nil {
		if cerr := s.publisher.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS
// preflight requests. Pages post from the wallet service's origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
