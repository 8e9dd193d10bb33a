package provider

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/brojonat/custodian/service/surface"
	"github.com/google/uuid"
)

type handshakeState int32

const (
	stateWaiting handshakeState = iota
	stateApproved
	stateCanceled
)

// handshakeResult is what an approved sign-in yields.
type handshakeResult struct {
	code     string
	accounts []string
}

// challenge tracks one sign-in attempt. It leaves the waiting state at most
// once; later deliveries are dropped.
type challenge struct {
	state   atomic.Int32
	outcome chan surface.Message
}

func newChallenge() *challenge {
	return &challenge{outcome: make(chan surface.Message, 1)}
}

func (c *challenge) resolve(m surface.Message) {
	to := stateCanceled
	if m.Type == surface.TypeChallengeResponse {
		to = stateApproved
	}
	if c.state.CompareAndSwap(int32(stateWaiting), int32(to)) {
		c.outcome <- m
	}
}

// handshake shows the wallet service's sign-in page and waits for it to
// report the outcome.
func (p *Provider) handshake(ctx context.Context) (res *handshakeResult, err error) {
	if p.surface == nil || p.messages == nil {
		return nil, ErrNoSurface
	}
	if p.server == "" {
		return nil, ErrNoServer
	}

	outcome := "error"
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordHandshake(outcome)
		}
	}()

	serverOrigin := surface.Origin(p.server)
	nonce := uuid.NewString()
	c := newChallenge()

	// Subscribe before the page is shown so an immediate reply is not lost.
	sub, err := p.messages.SubscribeOnce(surface.ChallengeEvent(nonce),
		func(m surface.Message) bool {
			if surface.Origin(m.Origin) != serverOrigin {
				return false
			}
			return m.Type == surface.TypeChallengeResponse || m.Type == surface.TypeChallengeCancel
		},
		c.resolve,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to sign-in messages: %w", err)
	}
	defer sub.Cancel()

	authnURL := p.backend.AuthnURL(p.origin, nonce)
	overlay, err := p.surface.CreateOverlay(authnURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create sign-in overlay: %w", err)
	}
	if err := p.surface.Attach(overlay); err != nil {
		return nil, fmt.Errorf("failed to attach sign-in overlay: %w", err)
	}
	defer p.detach(ctx, overlay)

	p.logger.InfoContext(ctx, "waiting for sign-in", "url", authnURL)

	select {
	case <-ctx.Done():
		outcome = "aborted"
		return nil, ctx.Err()
	case m := <-c.outcome:
		sub.Cancel()
		if m.Type == surface.TypeChallengeCancel {
			outcome = "canceled"
			return nil, ErrHandshakeCanceled
		}
		if m.Code == "" {
			return nil, ErrMalformedChallenge
		}
		var accounts []string
		if m.Addr != "" {
			accounts = []string{m.Addr}
		}
		outcome = "approved"
		p.logger.InfoContext(ctx, "signed in", "account", m.Addr)
		return &handshakeResult{code: m.Code, accounts: accounts}, nil
	}
}
