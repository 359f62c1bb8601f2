package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates chat credentials against a shared HMAC secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
	now    func() time.Time
	leeway time.Duration
}

// VerifierOption customises a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLeeway tolerates small clock skew when checking exp and iat.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.leeway = d
		}
	}
}

// NewVerifier returns a Verifier bound to secret.
func NewVerifier(secret []byte, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the token signature and expiry and returns the identity it
// carries. Blank tokens fail with ErrMissingToken before any parsing; every
// other failure is reported as ErrInvalidToken.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	if strings.TrimSpace(claims.UserID) == "" {
		return Identity{}, ErrInvalidToken
	}

	return identityFromClaims(claims), nil
}
