package provider

import (
	"context"
	"sync"
)

// session is the state established by a successful sign-in.
type session struct {
	mu        sync.RWMutex
	connected bool
	code      string
	accounts  []string
}

func (s *session) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *session) snapshot() (code string, accounts []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code, append([]string(nil), s.accounts...)
}

func (s *session) establish(code string, accounts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.code = code
	s.accounts = append([]string(nil), accounts...)
}

func (s *session) setAccounts(accounts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append([]string(nil), accounts...)
}

// ensureConnected runs the sign-in handshake unless a session exists.
// Concurrent callers share a single handshake and its outcome.
func (p *Provider) ensureConnected(ctx context.Context) error {
	if p.session.isConnected() {
		return nil
	}

	_, err, _ := p.connect.Do("connect", func() (interface{}, error) {
		if p.session.isConnected() {
			return nil, nil
		}
		res, err := p.handshake(ctx)
		if err != nil {
			return nil, err
		}
		p.session.establish(res.code, res.accounts)
		return nil, nil
	})
	return err
}
