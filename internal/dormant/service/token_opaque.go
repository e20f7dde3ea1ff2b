package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/aussiebroadwan/dormant/pkg/cryptox"
)

// OpaqueStrategy stores single-use random tokens server-side, keyed by
// fingerprint. A token is destroyed on first consumption, so a replayed
// link fails closed even inside the validity window.
type OpaqueStrategy struct {
	Tokens store.ActionTokens

	// TTL bounds token age; zero means DefaultTokenWindow.
	TTL time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *OpaqueStrategy) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *OpaqueStrategy) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTokenWindow
}

func (s *OpaqueStrategy) Issue(ctx context.Context, subject string) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	if err := s.Tokens.Insert(ctx, cryptox.FingerprintToken(raw), subject, s.now().UTC()); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *OpaqueStrategy) Verify(ctx context.Context, subject, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	user, issuedAt, err := s.Tokens.Lookup(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if user != subject {
		return ErrInvalidToken
	}
	if s.now().UTC().Sub(issuedAt) > s.ttl() {
		return ErrInvalidToken
	}
	return nil
}

func (s *OpaqueStrategy) Consume(ctx context.Context, subject, token string) error {
	err := s.Tokens.Delete(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		// Already consumed; the race loser fails closed.
		return ErrInvalidToken
	}
	return err
}
