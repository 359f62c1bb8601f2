package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no credential was supplied at all.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken covers bad signatures, malformed and expired tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrEmptyUserID is returned by the issuer when asked to sign an empty identity.
	ErrEmptyUserID = errors.New("auth: empty user id")
)

// Claims is the payload stored inside a chat credential.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Identity is the trusted result of a successful verification.
type Identity struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsZero reports whether the identity carries no identifier.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

func identityFromClaims(c *Claims) Identity {
	id := Identity{ID: c.UserID}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}
