package nats

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/custodian/service/metrics"
	"github.com/brojonat/custodian/service/surface"
	"github.com/nats-io/nats.go"
)

// Publisher defines the interface for publishing cross-context messages.
type Publisher interface {
	// Publish sends msg on the subject for event. msg.Origin travels in a
	// header so subscribers can filter on it.
	Publish(ctx context.Context, event string, msg surface.Message) error

	// Close closes the connection to NATS.
	Close() error
}

// NATSPublisher publishes cross-context messages to NATS core subjects.
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a publisher on an open connection. The publisher owns
// the connection and closes it on Close.
func NewPublisher(nc *nats.Conn, prefix string, m *metrics.Metrics, logger *slog.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &NATSPublisher{
		nc:      nc,
		prefix:  prefix,
		metrics: m,
		logger:  logger,
	}
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, event string, msg surface.Message) error {
	subject := Subject(p.prefix, event)
	start := time.Now()

	out, err := encodeMessage(subject, msg)
	if err == nil {
		err = p.nc.PublishMsg(out)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish message", "subject", subject, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "published message",
		"subject", subject,
		"type", msg.Type,
		"origin", msg.Origin,
	)
	return nil
}

// Close closes the connection to NATS.
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
