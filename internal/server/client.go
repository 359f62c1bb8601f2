// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle state for each admitted connection.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/securechat/internal/auth"
	"github.com/Tyrowin/securechat/internal/config"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var validate = validator.New()

// ConnState is the lifecycle state of a client connection.
type ConnState int

const (
	// StatePending is a connection whose credential has not been accepted yet.
	StatePending ConnState = iota
	// StateAdmitted is a registered connection that receives broadcasts.
	StateAdmitted
	// StateRejected is a connection that was never registered.
	StateRejected
	// StateClosed is a formerly admitted connection that left the registry.
	StateClosed
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAdmitted:
		return "admitted"
	case StateRejected:
		return "rejected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// ClientOptions carries the per-connection limits taken from configuration.
type ClientOptions struct {
	SendBufferSize int
	MaxMessageSize int64
	RateLimit      config.RateLimit
	Logger         *slog.Logger
}

// Client is one WebSocket session together with the identity it was
// admitted with.
type Client struct {
	handle   uuid.UUID
	identity auth.Identity
	conn     *websocket.Conn
	addr     string
	log      *slog.Logger

	mu         sync.Mutex
	send       chan []byte
	sendClosed bool
	state      ConnState

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      config.RateLimit
}

// NewClient creates a pending client for conn with a fresh handle.
func NewClient(conn *websocket.Conn, identity auth.Identity, addr string, opts ClientOptions) *Client {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 256
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 4096
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if conn != nil {
		conn.SetReadLimit(opts.MaxMessageSize + envelopeOverhead)
	}

	handle := uuid.New()
	return &Client{
		handle:         handle,
		identity:       identity,
		conn:           conn,
		addr:           addr,
		log:            opts.Logger.With("handle", handle.String(), "user", identity.ID, "addr", addr),
		send:           make(chan []byte, opts.SendBufferSize),
		state:          StatePending,
		maxMessageSize: opts.MaxMessageSize,
		rateLimiter:    newRateLimiter(opts.RateLimit),
		rateLimit:      opts.RateLimit,
	}
}

// Handle returns the connection handle.
func (c *Client) Handle() uuid.UUID { return c.handle }

// Identity returns the verified identity attached at admission.
func (c *Client) Identity() auth.Identity { return c.identity }

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetSendChan returns the client's outbound queue for reading.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// transition moves the client from one state to another. It reports false
// and leaves the state untouched when the client is not in from.
func (c *Client) transition(from, to ConnState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// enqueue hands msg to the write pump without blocking.
func (c *Client) enqueue(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendClosed {
		return fmt.Errorf("%w: connection closed", ErrRecipientUnavailable)
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full", ErrRecipientUnavailable)
	}
}

// closeSend closes the outbound queue once; the write pump then sends a
// close frame and exits.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Debug("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// readErrorReason classifies a read error into a disconnect reason.
func (c *Client) readErrorReason(err error) string {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		return fmt.Sprintf("frame exceeded %d bytes", c.maxMessageSize+envelopeOverhead)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "client closed connection"
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		return "connection closed"
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "unexpected close: " + err.Error()
	default:
		return "read error: " + err.Error()
	}
}

// checkRateLimit reports whether the client may send another message now.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("Rate limit exceeded, discarding message",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// decodeChat parses one inbound frame. Frames for other events yield ok=false
// with a nil error.
func (c *Client) decodeChat(raw []byte) (string, bool, error) {
	var evt Event[json.RawMessage]
	if err := json.Unmarshal(raw, &evt); err != nil {
		return "", false, fmt.Errorf("invalid frame: %w", err)
	}
	if evt.Event != EventChatMessage {
		return "", false, nil
	}

	var chat InboundChat
	if err := json.Unmarshal(evt.Data, &chat); err != nil {
		return "", false, fmt.Errorf("invalid chat payload: %w", err)
	}
	if err := validate.Struct(chat); err != nil {
		return "", false, fmt.Errorf("invalid chat payload: %w", err)
	}
	if int64(len(chat.Message)) > c.maxMessageSize {
		return "", false, fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, len(chat.Message), c.maxMessageSize)
	}
	return chat.Message, true, nil
}

// processMessage decodes a raw frame and forwards chat messages to the hub.
func (c *Client) processMessage(h *Hub, raw []byte) bool {
	message, ok, err := c.decodeChat(raw)
	if err != nil {
		c.log.Warn("Discarding message", "error", err)
		return false
	}
	if !ok {
		c.log.Debug("Ignoring frame for unknown event")
		return false
	}

	if err := h.OnMessage(c.handle, message); err != nil {
		c.log.Debug("Message not accepted by hub", "error", err)
		return false
	}
	return true
}

// readPump reads frames until the connection fails, then unregisters the
// client. A panic while handling one frame closes only this connection.
func (c *Client) readPump(h *Hub) {
	reason := "connection closed"
	defer func() {
		if r := recover(); r != nil {
			reason = fmt.Sprintf("panic: %v", r)
			c.log.Error("Recovered from panic in read pump", "panic", r)
		}
		h.Disconnect(c, reason)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("Error closing connection in read pump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			reason = c.readErrorReason(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(h, raw)
	}
}

// writePump drains the outbound queue to the connection and keeps it alive
// with pings. It exits when the queue is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.handleMessage(message, ok) {
				return
			}
		case <-ticker.C:
			if !c.handlePing() {
				return
			}
		}
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error closing connection in write pump", "error", err)
	}
}

// handleMessage writes one outgoing frame and returns false if the pump should stop.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		c.writeCloseMessage()
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("Error writing message", "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close frame to the client
func (c *Client) writeCloseMessage() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error writing close message", "error", err)
	}
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("Error writing ping message", "error", err)
		return false
	}
	return true
}
