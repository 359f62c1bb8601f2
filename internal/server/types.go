// Package server defines the wire envelopes exchanged with clients and small
// helpers shared by the client, hub and handlers.
package server

import (
	"encoding/json"
	"errors"
	"strings"
)

// EventChatMessage is the only event name clients send and receive.
const EventChatMessage = "chat message"

// envelopeOverhead is the slack allowed on top of MaxMessageSize for the
// JSON envelope wrapped around a chat message.
const envelopeOverhead = 256

var (
	// ErrDuplicateHandle is returned when a handle is already registered.
	ErrDuplicateHandle = errors.New("server: duplicate connection handle")
	// ErrNoIdentity is returned when a client without a verified identity is registered.
	ErrNoIdentity = errors.New("server: connection has no verified identity")
	// ErrRecipientUnavailable marks a single failed delivery during fan-out.
	ErrRecipientUnavailable = errors.New("server: recipient unavailable")
	// ErrUnknownSender is returned for messages from connections not in the registry.
	ErrUnknownSender = errors.New("server: sender is not registered")
	// ErrHubStopped is returned once the hub has shut down.
	ErrHubStopped = errors.New("server: hub stopped")
	// ErrMessageTooLarge is returned when a chat message exceeds the configured size.
	ErrMessageTooLarge = errors.New("server: message too large")
)

// Event is the JSON envelope of every frame: {"event": ..., "data": ...}.
type Event[T any] struct {
	Event string `json:"event"`
	Data  T      `json:"data"`
}

// InboundChat is the payload of a chat message sent by a client.
type InboundChat struct {
	Message string `json:"message" validate:"required"`
}

// ChatMessage is the payload fanned out to every admitted client.
type ChatMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// encodeChatMessage renders the outbound frame for msg.
func encodeChatMessage(msg ChatMessage) ([]byte, error) {
	return json.Marshal(Event[ChatMessage]{Event: EventChatMessage, Data: msg})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
