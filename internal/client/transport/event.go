package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names on the wire.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"

	EventUsersOnline       = "users-online"
	EventNewMessage        = "new-message"
	EventMessageDelivered  = "message-delivered"
	EventMessageRead       = "message-read"
	EventMessagesRead      = "messages-read"
	EventUserStatusChanged = "user-status-changed"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"

	EventUserOnline       = "user-online"
	EventUserOffline      = "user-offline"
	EventSendMessage      = "send-message"
	EventMarkMessagesRead = "mark-messages-read"
	EventJoinChat         = "join-chat"
	EventTypingStart      = "typing-start"
	EventTypingStop       = "typing-stop"
)

var (
	ErrNotConnected   = errors.New("transport: not connected")
	ErrSendBufferFull = errors.New("transport: send buffer full")
	ErrClosed         = errors.New("transport: closed")
)

// Event is the envelope every frame travels in.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", e.Type, err)
	}
	return nil
}

// NewEvent marshals payload into an envelope. A nil payload is left empty.
func NewEvent(name string, payload any) (Event, error) {
	ev := Event{Type: name}
	if payload == nil {
		return ev, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("%s: encode payload: %w", name, err)
	}
	ev.Payload = data
	return ev, nil
}

// Conn is what the sync controller needs from a transport: fire-and-forget
// emission and scoped listener registration.
type Conn interface {
	// Emit queues an event for delivery. It never blocks.
	Emit(name string, payload any) error
	// On registers h for events named name until the returned handle is released.
	On(name string, h Handler) *Subscription
}
