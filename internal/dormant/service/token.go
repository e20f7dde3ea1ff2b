package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/aussiebroadwan/dormant/pkg/cryptox"
)

// DefaultTokenWindow is how long an issued action-link token stays valid.
const DefaultTokenWindow = 24 * time.Hour

// TokenStrategy issues and verifies the tokens embedded in emailed action
// links. Verification fails closed: any malformed input yields
// ErrInvalidToken, never a panic. Consume destroys single-use tokens and is
// a no-op for stateless strategies.
type TokenStrategy interface {
	Issue(ctx context.Context, subject string) (string, error)
	Verify(ctx context.Context, subject, token string) error
	Consume(ctx context.Context, subject, token string) error
}

// NewTokenStrategy builds the strategy selected by name. The opaque
// strategy needs the action-token repository; the others ignore it.
func NewTokenStrategy(name string, secret []byte, window, futureDrift time.Duration, tokens store.ActionTokens) (TokenStrategy, error) {
	switch name {
	case "hmac", "":
		return &HMACStrategy{Secret: secret, Window: window, FutureDrift: futureDrift}, nil
	case "opaque":
		return &OpaqueStrategy{Tokens: tokens, TTL: window}, nil
	case "jwt":
		return &JWTStrategy{Secret: secret, Window: window, FutureDrift: futureDrift}, nil
	default:
		return nil, fmt.Errorf("unknown token strategy %q", name)
	}
}

// hmacTimeLayout stamps issuance at minute granularity (UTC).
const hmacTimeLayout = "200601021504"

// HMACStrategy embeds a keyed signature and the issuance timestamp in the
// token itself; nothing is stored server-side. Token form:
// base64url(HMAC-SHA256(secret, subject:ts)) ":" ts.
type HMACStrategy struct {
	Secret []byte

	// Window bounds how far in the past the issuance stamp may lie.
	// Zero means DefaultTokenWindow.
	Window time.Duration

	// FutureDrift bounds how far in the future the stamp may lie. Zero
	// means equal to the window: legacy verifiers bounded the absolute
	// time delta, and narrowing that silently would invalidate links
	// minted by hosts with skewed clocks. Negative means no future
	// tolerance at all.
	FutureDrift time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *HMACStrategy) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *HMACStrategy) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return DefaultTokenWindow
}

func (s *HMACStrategy) futureDrift() time.Duration {
	switch {
	case s.FutureDrift > 0:
		return s.FutureDrift
	case s.FutureDrift < 0:
		return 0
	default:
		return s.window()
	}
}

func (s *HMACStrategy) Issue(ctx context.Context, subject string) (string, error) {
	ts := s.now().UTC().Format(hmacTimeLayout)
	sig := cryptox.SignMessage(s.Secret, subject+":"+ts)
	return sig + ":" + ts, nil
}

func (s *HMACStrategy) Verify(ctx context.Context, subject, token string) error {
	sig, ts, found := strings.Cut(token, ":")
	if !found || sig == "" || ts == "" {
		return ErrInvalidToken
	}

	if !cryptox.VerifyMessage(s.Secret, subject+":"+ts, sig) {
		return ErrInvalidToken
	}

	issued, err := time.ParseInLocation(hmacTimeLayout, ts, time.UTC)
	if err != nil {
		return ErrInvalidToken
	}

	age := s.now().UTC().Sub(issued)
	if age > s.window() || -age > s.futureDrift() {
		return ErrInvalidToken
	}
	return nil
}

func (s *HMACStrategy) Consume(ctx context.Context, subject, token string) error {
	return nil // stateless; nothing to destroy
}
