package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer signs credentials for already-authenticated users. Account
// management owns the real login flow; the relay only uses this for tooling
// and tests.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer that signs with secret and stamps tokens with
// the issuer name and a lifetime of ttl.
func NewIssuer(secret []byte, name string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: append([]byte(nil), secret...),
		name:   name,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}

// Issue creates a signed HS256 token for userID.
func (i *Issuer) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}

	now := i.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			Issuer:    i.name,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}
