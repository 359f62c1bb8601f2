package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/securechat/internal/auth"
)

//go:generate mockgen -source=lifecycle.go -destination=mocks/mock_lifecycle.go -package=mocks

// LifecycleLogger records connection lifecycle events. Implementations must
// not block; the hub and gate call them inline.
type LifecycleLogger interface {
	Connected(handle uuid.UUID, identity auth.Identity, addr string)
	Disconnected(handle uuid.UUID, identity auth.Identity, reason string)
	AuthFailed(addr string, err error)
}

// SlogLifecycle writes lifecycle events as structured slog records.
type SlogLifecycle struct {
	log *slog.Logger
}

// NewSlogLifecycle returns a LifecycleLogger backed by log.
func NewSlogLifecycle(log *slog.Logger) *SlogLifecycle {
	return &SlogLifecycle{log: log}
}

// Connected logs an admitted connection.
func (s *SlogLifecycle) Connected(handle uuid.UUID, identity auth.Identity, addr string) {
	s.log.Info("Client connected",
		"event", "connect",
		"handle", handle.String(),
		"user", identity.ID,
		"addr", addr,
		"at", time.Now().UTC())
}

// Disconnected logs a connection leaving the registry and why.
func (s *SlogLifecycle) Disconnected(handle uuid.UUID, identity auth.Identity, reason string) {
	s.log.Info("Client disconnected",
		"event", "disconnect",
		"handle", handle.String(),
		"user", identity.ID,
		"reason", reason,
		"at", time.Now().UTC())
}

// AuthFailed logs a refused upgrade with a reason that never includes the token.
func (s *SlogLifecycle) AuthFailed(addr string, err error) {
	s.log.Warn("Connection refused",
		"event", "auth_failure",
		"addr", addr,
		"reason", authFailureReason(err),
		"at", time.Now().UTC())
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing token"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid token"
	default:
		return "authentication error"
	}
}

// guardedLifecycle swallows panics from the wrapped logger so a broken
// observer can never fail a connection.
type guardedLifecycle struct {
	next LifecycleLogger
}

func guardLifecycle(l LifecycleLogger) LifecycleLogger {
	if l == nil {
		return guardedLifecycle{}
	}
	if g, ok := l.(guardedLifecycle); ok {
		return g
	}
	return guardedLifecycle{next: l}
}

func (g guardedLifecycle) Connected(handle uuid.UUID, identity auth.Identity, addr string) {
	if g.next == nil {
		return
	}
	defer absorb()
	g.next.Connected(handle, identity, addr)
}

func (g guardedLifecycle) Disconnected(handle uuid.UUID, identity auth.Identity, reason string) {
	if g.next == nil {
		return
	}
	defer absorb()
	g.next.Disconnected(handle, identity, reason)
}

func (g guardedLifecycle) AuthFailed(addr string, err error) {
	if g.next == nil {
		return
	}
	defer absorb()
	g.next.AuthFailed(addr, err)
}

func absorb() {
	_ = recover()
}
