package nats

import (
	"encoding/json"
	"fmt"

	"github.com/brojonat/custodian/service/surface"
	"github.com/nats-io/nats.go"
)

const (
	// DefaultPrefix is the subject prefix cross-context messages travel under.
	DefaultPrefix = "custodian"

	// HeaderOrigin carries the origin of the page that sent a message. It is
	// set by the relay from the HTTP Origin header; payload origins are ignored.
	HeaderOrigin = "Custodian-Origin"
)

// Subject returns the subject for an event, e.g. "custodian.message".
func Subject(prefix, event string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, event)
}

// encodeMessage builds the NATS message for a cross-context message.
func encodeMessage(subject string, msg surface.Message) (*nats.Msg, error) {
	origin := msg.Origin
	msg.Origin = ""
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	out := nats.NewMsg(subject)
	out.Data = data
	out.Header.Set(HeaderOrigin, origin)
	return out, nil
}

// decodeMessage reverses encodeMessage. The origin always comes from the header.
func decodeMessage(m *nats.Msg) (surface.Message, error) {
	var msg surface.Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		return surface.Message{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	msg.Origin = ""
	if m.Header != nil {
		msg.Origin = m.Header.Get(HeaderOrigin)
	}
	return msg, nil
}
