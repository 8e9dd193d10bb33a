package nats

import (
	"context"
	"sync"

	"github.com/brojonat/custodian/service/surface"
)

// PublishedMessage is a message recorded by MockPublisher.
type PublishedMessage struct {
	Event   string
	Message surface.Message
}

// MockPublisher is a mock implementation of Publisher for testing.
// When Forward is set, published messages are also posted to it.
type MockPublisher struct {
	mu           sync.RWMutex
	published    []PublishedMessage
	publishError error
	closed       bool

	Forward *surface.LocalChannel
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		published: make([]PublishedMessage, 0),
	}
}

// Publish records the message and returns any configured error.
func (m *MockPublisher) Publish(ctx context.Context, event string, msg surface.Message) error {
	m.mu.Lock()
	if m.publishError != nil {
		err := m.publishError
		m.mu.Unlock()
		return err
	}
	m.published = append(m.published, PublishedMessage{Event: event, Message: msg})
	forward := m.Forward
	m.mu.Unlock()

	if forward != nil {
		forward.Post(event, msg)
	}
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublished returns all published messages (for testing).
func (m *MockPublisher) GetPublished() []PublishedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	out := make([]PublishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// SetPublishError configures the mock to return an error on Publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
