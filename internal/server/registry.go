package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry is the set of admitted clients keyed by connection handle.
// Every member carries a verified identity. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[uuid.UUID]*Client)}
}

// Add inserts c. A client without identity is refused with ErrNoIdentity and
// a handle that is already present with ErrDuplicateHandle; in both cases the
// registry is left unchanged.
func (r *Registry) Add(c *Client) error {
	if c == nil || c.identity.IsZero() {
		return ErrNoIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c.handle]; exists {
		return ErrDuplicateHandle
	}
	r.clients[c.handle] = c
	return nil
}

// Remove deletes the client registered under handle and returns it.
// Removing an absent handle is a no-op.
func (r *Registry) Remove(handle uuid.UUID) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[handle]
	if ok {
		delete(r.clients, handle)
	}
	return c, ok
}

// Get returns the client registered under handle.
func (r *Registry) Get(handle uuid.UUID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[handle]
	return c, ok
}

// All returns a point-in-time snapshot of the registered clients. The slice
// is owned by the caller and unaffected by later Add or Remove calls.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.clients)
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
