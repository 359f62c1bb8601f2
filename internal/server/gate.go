package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Tyrowin/securechat/internal/auth"
)

//go:generate mockgen -source=gate.go -destination=mocks/mock_gate.go -package=mocks

// CredentialVerifier turns a bearer token into a verified identity.
type CredentialVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Gate authenticates upgrade requests before they are admitted.
type Gate struct {
	verifier  CredentialVerifier
	lifecycle LifecycleLogger
}

// NewGate returns a gate that checks credentials with verifier and reports
// refusals to lifecycle.
func NewGate(verifier CredentialVerifier, lifecycle LifecycleLogger) *Gate {
	return &Gate{verifier: verifier, lifecycle: guardLifecycle(lifecycle)}
}

// Admit extracts the credential from r and verifies it. On failure the
// refusal is recorded and the returned error is auth.ErrMissingToken or
// auth.ErrInvalidToken; the request must not be upgraded.
func (g *Gate) Admit(r *http.Request) (auth.Identity, error) {
	token := TokenFromRequest(r)
	if token == "" {
		g.lifecycle.AuthFailed(r.RemoteAddr, auth.ErrMissingToken)
		return auth.Identity{}, auth.ErrMissingToken
	}

	identity, err := g.verifier.Verify(token)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingToken) {
			err = auth.ErrInvalidToken
		}
		g.lifecycle.AuthFailed(r.RemoteAddr, err)
		return auth.Identity{}, err
	}
	if identity.IsZero() {
		g.lifecycle.AuthFailed(r.RemoteAddr, auth.ErrInvalidToken)
		return auth.Identity{}, auth.ErrInvalidToken
	}

	return identity, nil
}

// TokenFromRequest reads the credential from the "token" query parameter,
// falling back to an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
