package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTStrategy signs a compact HS256 JWT carrying the subject and issuance
// time, verified against the same startup secret and validity window as the
// HMAC strategy. Useful where the consuming mail templates already expect a
// JWT shape.
type JWTStrategy struct {
	Secret []byte

	// Window and FutureDrift carry HMACStrategy semantics: zero values
	// default the same way and a negative FutureDrift means none.
	Window      time.Duration
	FutureDrift time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *JWTStrategy) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *JWTStrategy) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return DefaultTokenWindow
}

func (s *JWTStrategy) futureDrift() time.Duration {
	switch {
	case s.FutureDrift > 0:
		return s.FutureDrift
	case s.FutureDrift < 0:
		return 0
	default:
		return s.window()
	}
}

func (s *JWTStrategy) Issue(ctx context.Context, subject string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(s.now().UTC()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

func (s *JWTStrategy) Verify(ctx context.Context, subject, token string) error {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}

	if claims.Subject != subject || claims.IssuedAt == nil {
		return ErrInvalidToken
	}

	age := s.now().UTC().Sub(claims.IssuedAt.Time)
	if age > s.window() || -age > s.futureDrift() {
		return ErrInvalidToken
	}
	return nil
}

func (s *JWTStrategy) Consume(ctx context.Context, subject, token string) error {
	return nil // stateless; nothing to destroy
}
