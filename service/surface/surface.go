// Package surface defines the capabilities the provider needs from its host:
// a place to show the wallet service's pages (overlays) and a channel on which
// those pages send messages back.
//
// A browser host maps an overlay to an iframe and the channel to
// window.postMessage. A command line host prints the URL for the user and
// receives messages through a relay (see the nats package).
package surface

import (
	"net/url"
	"strings"
)

// Overlay is an opaque handle to a surface showing a remote page.
type Overlay interface {
	URL() string
}

// Surface creates, shows and removes overlays.
type Surface interface {
	CreateOverlay(url string) (Overlay, error)
	Attach(o Overlay) error
	Detach(o Overlay) error
}

// Message types emitted by the wallet service's sign-in page.
const (
	TypeChallengeResponse = "CHALLENGE::RESPONSE"
	TypeChallengeCancel   = "CHALLENGE::CANCEL"
)

// EventMessage is the event name cross-context messages arrive on.
const EventMessage = "message"

// ChallengeParam is the sign-in page query parameter carrying the nonce the
// page's reply is addressed to.
const ChallengeParam = "challenge"

// ChallengeEvent returns the event a reply to the sign-in identified by nonce
// is posted on. Each sign-in listens on its own event, so a reply only ever
// reaches the provider that opened the page.
func ChallengeEvent(nonce string) string {
	return EventMessage + "-" + nonce
}

// ReplyEvent returns the event the page at rawURL must post its reply on:
// the challenge event when the URL carries a nonce, EventMessage otherwise.
func ReplyEvent(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return EventMessage
	}
	if nonce := u.Query().Get(ChallengeParam); nonce != "" {
		return ChallengeEvent(nonce)
	}
	return EventMessage
}

// Message is a cross-context message. Origin is set by the transport, never
// by the sender's payload.
type Message struct {
	Origin string `json:"origin"`
	Type   string `json:"type"`
	Code   string `json:"code,omitempty"`
	Addr   string `json:"addr,omitempty"`
}

// Subscription is a registered one-shot handler. Cancel removes it; calling
// Cancel more than once, or after the handler fired, is a no-op.
type Subscription interface {
	Cancel()
}

// MessageChannel delivers cross-context messages.
type MessageChannel interface {
	// SubscribeOnce registers handle for the first message on event that
	// satisfies match. The subscription removes itself before handle runs,
	// so handle is called at most once. Messages that do not match are
	// dropped and the subscription stays active.
	SubscribeOnce(event string, match func(Message) bool, handle func(Message)) (Subscription, error)
}

// Origin normalizes a URL to its scheme://host[:port] origin, the form
// message origins are compared in.
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
