// Package event defines the wire protocol shared by the relay core, the
// read surface and the websocket gateway: a small JSON envelope with one
// payload struct per event kind.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amnnrajbhar/chat-room/internal/store"
)

// Server-to-client event names.
const (
	TypeRoomMessages = "room-messages"
	TypeNewMessage   = "new-message"
	TypeUserJoined   = "user-joined"
	TypeUserLeft     = "user-left"
	TypeError        = "error"
)

// Client-to-server event names.
const (
	TypeJoinRoom    = "join-room"
	TypeSendMessage = "send-message"
)

// Envelope wraps every event on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode marshals an event envelope.
func Encode(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s payload: %w", name, err)
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}

// Decode unmarshals an event envelope.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("event: decode envelope: %w", err)
	}
	return &env, nil
}

// Presence is the payload of user-joined and user-left events. Message is a
// human-readable line ("alice joined the room").
type Presence struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Error is the payload of error events, sent only to the originating
// connection.
type Error struct {
	Message string `json:"message"`
}

// NewMessage is the payload of new-message events: the persisted record,
// including the store-assigned id and timestamp.
type NewMessage = store.Message

// JoinRoom is the client payload of join-room events.
type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// SendMessage is the client payload of send-message events.
type SendMessage struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}
