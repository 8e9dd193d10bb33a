package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/custodian/client"
)

// authorize submits a transaction for remote approval, shows the approval
// page and waits for the user's decision. Only one authorization runs at a
// time.
func (p *Provider) authorize(ctx context.Context, message string, signatures map[string]string) (string, error) {
	if p.surface == nil {
		return "", ErrNoSurface
	}
	code, _ := p.session.snapshot()
	if code == "" {
		return "", ErrNotConnected
	}

	if err := p.authz.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.authz.Release(1)

	start := time.Now()
	outcome := "error"
	task := &pollTask{
		backend:  p.backend,
		interval: p.pollInterval,
		logger:   p.logger,
	}
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordAuthorization(outcome, task.polls, time.Since(start).Seconds())
		}
	}()

	id, err := p.backend.Authorize(ctx, code, client.AuthorizeRequest{
		SessionID:  p.sessionID,
		Signatures: signatures,
		Message:    message,
	})
	if err != nil {
		return "", err
	}
	task.authorizationID = id

	overlay, err := p.surface.CreateOverlay(p.backend.AuthzURL(id))
	if err != nil {
		return "", fmt.Errorf("failed to create approval overlay: %w", err)
	}
	if err := p.surface.Attach(overlay); err != nil {
		return "", fmt.Errorf("failed to attach approval overlay: %w", err)
	}
	defer p.detach(ctx, overlay)

	p.logger.InfoContext(ctx, "waiting for approval", "authorization_id", id)

	hash, err := task.run(ctx)
	switch {
	case err == nil:
		outcome = "approved"
	case errors.Is(err, ErrAuthorizationDeclined):
		outcome = "declined"
	case ctx.Err() != nil:
		outcome = "aborted"
	}
	return hash, err
}

// pollTask polls one authorization until it reaches a terminal status.
// The ticker belongs to run and is stopped on every exit path.
type pollTask struct {
	backend         *client.Backend
	authorizationID string
	interval        time.Duration
	logger          *slog.Logger

	polls int
}

func (t *pollTask) run(ctx context.Context) (string, error) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		t.polls++
		auth, err := t.backend.AuthorizationStatus(ctx, t.authorizationID)
		if err != nil {
			return "", err
		}

		switch auth.Status {
		case client.StatusApproved:
			t.logger.InfoContext(ctx, "transaction approved",
				"authorization_id", t.authorizationID,
				"transaction_hash", auth.TransactionHash,
				"polls", t.polls,
			)
			return auth.TransactionHash, nil
		case client.StatusDeclined:
			t.logger.InfoContext(ctx, "transaction declined",
				"authorization_id", t.authorizationID,
				"polls", t.polls,
			)
			return "", ErrAuthorizationDeclined
		default:
			t.logger.DebugContext(ctx, "authorization pending",
				"authorization_id", t.authorizationID,
				"status", auth.Status,
			)
		}
	}
}
