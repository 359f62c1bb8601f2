// Package server coordinates client admission, message fan-out and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/securechat/internal/auth"
)

// broadcastQueueSize bounds the number of accepted but not yet fanned out messages.
const broadcastQueueSize = 256

type inboundMessage struct {
	sender   uuid.UUID
	identity auth.Identity
	text     string
}

// Hub fans chat messages out to every client in its registry. A single
// goroutine (Run) performs fan-out, so messages are delivered in the order
// OnMessage accepted them.
type Hub struct {
	registry  *Registry
	lifecycle LifecycleLogger
	log       *slog.Logger

	broadcast chan inboundMessage
	wg        sync.WaitGroup

	// mu orders Admit and Start against Shutdown: once stopped is set no
	// client is registered and no pump goroutine is added to wg.
	mu      sync.Mutex
	stopped bool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	runOnce   sync.Once

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a hub over registry. Run must be started before messages flow.
func NewHub(registry *Registry, lifecycle LifecycleLogger, log *slog.Logger) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:  registry,
		lifecycle: guardLifecycle(lifecycle),
		log:       log,
		broadcast: make(chan inboundMessage, broadcastQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Registry returns the registry the hub reads from.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Stats returns the number of successful and dropped deliveries so far.
func (h *Hub) Stats() (delivered, dropped uint64) {
	return h.delivered.Load(), h.dropped.Load()
}

// Admit registers c and records the connect event. A client that cannot be
// registered is marked rejected.
func (h *Hub) Admit(c *Client) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		c.transition(StatePending, StateRejected)
		return ErrHubStopped
	}
	if err := h.registry.Add(c); err != nil {
		h.mu.Unlock()
		c.transition(StatePending, StateRejected)
		return err
	}
	c.transition(StatePending, StateAdmitted)
	h.mu.Unlock()

	h.lifecycle.Connected(c.handle, c.identity, c.addr)
	h.log.Debug("Client registered", "handle", c.handle.String(), "clients", h.registry.Len())
	return nil
}

// Start launches the read and write pumps of an admitted client. It returns
// ErrHubStopped once Shutdown has begun; the client has then already been
// disconnected.
func (h *Hub) Start(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return ErrHubStopped
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump(h)
	}()
	return nil
}

// Disconnect removes c from the registry and closes its outbound queue.
// Repeated calls are no-ops.
func (h *Hub) Disconnect(c *Client, reason string) {
	if _, ok := h.registry.Remove(c.handle); !ok {
		return
	}
	c.transition(StateAdmitted, StateClosed)
	c.closeSend()

	h.lifecycle.Disconnected(c.handle, c.identity, reason)
	h.log.Debug("Client unregistered", "handle", c.handle.String(), "clients", h.registry.Len())
}

// OnMessage accepts a chat message from the client registered under sender
// and queues it for fan-out, tagged with the sender's identity.
func (h *Hub) OnMessage(sender uuid.UUID, text string) error {
	c, ok := h.registry.Get(sender)
	if !ok {
		return ErrUnknownSender
	}

	msg := inboundMessage{sender: sender, identity: c.identity, text: text}
	select {
	case <-h.ctx.Done():
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- msg:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

// Run processes queued messages until Shutdown is called. Calling Run more
// than once has no effect.
func (h *Hub) Run() {
	h.runOnce.Do(h.run)
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// fanOut delivers one copy of msg to every registered client, the sender
// included. A failed delivery is counted and skipped.
func (h *Hub) fanOut(msg inboundMessage) int {
	payload, err := encodeChatMessage(ChatMessage{User: msg.identity.ID, Message: msg.text})
	if err != nil {
		h.log.Error("Error encoding chat message", "error", err)
		return 0
	}

	recipients := h.registry.All()
	delivered := 0
	for _, c := range recipients {
		if err := c.enqueue(payload); err != nil {
			h.dropped.Add(1)
			h.log.Debug("Delivery dropped", "recipient", c.handle.String(), "error", err)
			continue
		}
		delivered++
	}
	h.delivered.Add(uint64(delivered))

	h.log.Debug("Broadcast message", "sender", msg.sender.String(), "recipients", len(recipients), "delivered", delivered)
	return delivered
}

// shutdownClients disconnects every registered client.
func (h *Hub) shutdownClients() {
	clients := h.registry.All()
	for _, c := range clients {
		h.Disconnect(c, "server shutdown")
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Debug("Error closing client connection", "handle", c.handle.String(), "error", err)
			}
		}
	}
	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the hub, closes every connection and waits up to timeout
// for the client goroutines to finish.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	h.cancel()
	// Run may never have been started.
	h.runOnce.Do(func() {
		defer close(h.done)
		h.shutdownClients()
	})
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
