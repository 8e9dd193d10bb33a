package nats

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brojonat/custodian/service/metrics"
	"github.com/brojonat/custodian/service/surface"
	"github.com/nats-io/nats.go"
)

// Connect opens a NATS connection with the reconnect behavior every
// component of the service uses.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Channel is a surface.MessageChannel backed by NATS core subscriptions.
// It lets a provider running outside a browser receive the messages the
// wallet service's pages post through the relay.
type Channel struct {
	nc      *nats.Conn
	prefix  string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewChannel creates a message channel on an open connection.
// If m is nil, no metrics will be recorded.
func NewChannel(nc *nats.Conn, prefix string, m *metrics.Metrics, logger *slog.Logger) *Channel {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Channel{
		nc:      nc,
		prefix:  prefix,
		metrics: m,
		logger:  logger,
	}
}

// SubscribeOnce implements surface.MessageChannel.
func (c *Channel) SubscribeOnce(event string, match func(surface.Message) bool, handle func(surface.Message)) (surface.Subscription, error) {
	subject := Subject(c.prefix, event)
	s := &subscription{
		subject: subject,
		match:   match,
		handle:  handle,
		metrics: c.metrics,
		logger:  c.logger,
	}

	// Hold the lock until the NATS subscription is recorded so a message
	// delivered immediately cannot race the assignment.
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := c.nc.Subscribe(subject, s.deliver)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.unsubscribe = sub.Unsubscribe

	c.logger.Debug("subscribed once", "subject", subject)
	return s, nil
}

// subscription is a self-removing NATS subscription.
type subscription struct {
	subject string
	match   func(surface.Message) bool
	handle  func(surface.Message)
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu          sync.Mutex
	unsubscribe func() error
	done        atomic.Bool
}

func (s *subscription) deliver(m *nats.Msg) {
	if s.done.Load() {
		return
	}

	msg, err := decodeMessage(m)
	if err != nil {
		s.logger.Warn("dropping undecodable message", "subject", s.subject, "error", err)
		s.record("invalid")
		return
	}
	if s.match != nil && !s.match(msg) {
		s.logger.Debug("ignoring message", "subject", s.subject, "origin", msg.Origin, "type", msg.Type)
		s.record("ignored")
		return
	}

	// Only the first matching delivery (or Cancel) wins.
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	s.release()
	s.record("matched")
	s.handle(msg)
}

// Cancel implements surface.Subscription.
func (s *subscription) Cancel() {
	if s.done.CompareAndSwap(false, true) {
		s.release()
	}
}

func (s *subscription) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe == nil {
		return
	}
	if err := s.unsubscribe(); err != nil {
		s.logger.Warn("failed to unsubscribe", "subject", s.subject, "error", err)
	}
	s.unsubscribe = nil
}

func (s *subscription) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordNATSReceive(s.subject, result)
	}
}
