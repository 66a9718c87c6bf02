// Package presence owns the session lifecycle: it maps live connections to
// (username, room) memberships, drives the membership state machine
// (ABSENT -> ONLINE -> OFFLINE -> ONLINE, purged later by the sweeper) and
// triggers room fanout for every event. The transport layer only decodes
// wire events and calls the Handler methods.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/amnnrajbhar/chat-room/internal/event"
	"github.com/amnnrajbhar/chat-room/internal/fanout"
	"github.com/amnnrajbhar/chat-room/internal/store"
)

const (
	// MaxMessageLen is the upper bound on message text, in runes.
	MaxMessageLen = 500

	// HistoryLimit is how many messages are replayed to a joining connection.
	HistoryLimit = 50
)

// Handler is the event-handling interface the transport invokes: one method
// per inbound event kind.
type Handler interface {
	Join(ctx context.Context, conn fanout.Conn, connID, roomID, username string) error
	Send(ctx context.Context, connID, roomID, username, text string) error
	Disconnect(ctx context.Context, connID string) error
}

// Store is the slice of the store adapter the presence manager needs.
type Store interface {
	GetOrCreateRoom(ctx context.Context, roomID, name string) (*store.Room, error)
	InsertMessage(ctx context.Context, roomID, username, text string) (*store.Message, error)
	RecentMessages(ctx context.Context, roomID string, limit int) ([]store.Message, error)
	UpsertMembership(ctx context.Context, username, roomID, connID string) (*store.Membership, error)
	MarkOffline(ctx context.Context, connID string) (*store.Membership, error)
}

// Manager implements Handler against a store and a fanout index.
type Manager struct {
	store  Store
	fanout *fanout.Fanout
	lanes  *roomLanes

	joinCounter       metric.Int64Counter
	sendCounter       metric.Int64Counter
	disconnectCounter metric.Int64Counter
}

// NewManager wires a presence manager. Both dependencies are required.
func NewManager(st Store, fo *fanout.Fanout) *Manager {
	meter := otel.Meter("presence-manager")
	joinCounter, _ := meter.Int64Counter("presence_joins_total",
		metric.WithDescription("Total join events processed"))
	sendCounter, _ := meter.Int64Counter("presence_sends_total",
		metric.WithDescription("Total chat messages relayed"))
	disconnectCounter, _ := meter.Int64Counter("presence_disconnects_total",
		metric.WithDescription("Total disconnects processed"))

	return &Manager{
		store:             st,
		fanout:            fo,
		lanes:             newRoomLanes(),
		joinCounter:       joinCounter,
		sendCounter:       sendCounter,
		disconnectCounter: disconnectCounter,
	}
}

// Join puts a connection into a room: room get-or-create, atomic membership
// upsert, history replay to the joiner only, then a user-joined broadcast to
// the rest of the room. It runs inside the room's lane, so the replayed
// history plus the live stream the joiner sees afterwards is gapless, and
// the history delivery happens before the joiner's own join is announced.
func (m *Manager) Join(ctx context.Context, conn fanout.Conn, connID, roomID, username string) error {
	if roomID == "" || username == "" {
		return &ValidationError{Reason: "roomId and username are required"}
	}

	unlock := m.lanes.lock(roomID)
	defer unlock()

	if _, err := m.store.GetOrCreateRoom(ctx, roomID, ""); err != nil {
		return fmt.Errorf("join %s/%s: %w", username, roomID, err)
	}
	if _, err := m.store.UpsertMembership(ctx, username, roomID, connID); err != nil {
		return fmt.Errorf("join %s/%s: %w", username, roomID, err)
	}
	m.fanout.Subscribe(roomID, connID, conn)

	history, err := m.store.RecentMessages(ctx, roomID, HistoryLimit)
	if err != nil {
		return fmt.Errorf("join %s/%s: %w", username, roomID, err)
	}
	// Query is newest-first; the client gets chronological order.
	ascending := make([]store.Message, len(history))
	for i, msg := range history {
		ascending[len(history)-1-i] = msg
	}
	replay, err := event.Encode(event.TypeRoomMessages, ascending)
	if err != nil {
		return fmt.Errorf("join %s/%s: %w", username, roomID, err)
	}
	conn.Deliver(replay)

	joined, err := event.Encode(event.TypeUserJoined, event.Presence{
		Username:  username,
		Message:   username + " joined the room",
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("join %s/%s: %w", username, roomID, err)
	}
	m.fanout.Broadcast(roomID, joined, connID)

	m.joinCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("room", roomID)))
	slog.InfoContext(ctx, "User joined room", "user", username, "room", roomID, "conn", connID)
	return nil
}

// Send validates, persists and broadcasts one message. Persist-then-broadcast
// is a single critical section per room, so the order messages are durably
// stored is the order every subscriber observes them; operations on other
// rooms are not serialized against this one.
func (m *Manager) Send(ctx context.Context, connID, roomID, username, text string) error {
	if text == "" {
		return &ValidationError{Reason: "message is empty"}
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return &ValidationError{Reason: fmt.Sprintf("message exceeds %d characters", MaxMessageLen)}
	}
	if roomID == "" || username == "" {
		return &ValidationError{Reason: "roomId and username are required"}
	}

	unlock := m.lanes.lock(roomID)
	defer unlock()

	msg, err := m.store.InsertMessage(ctx, roomID, username, text)
	if err != nil {
		return fmt.Errorf("send %s/%s: %w", username, roomID, err)
	}

	data, err := event.Encode(event.TypeNewMessage, msg)
	if err != nil {
		return fmt.Errorf("send %s/%s: %w", username, roomID, err)
	}
	// The sender is included: every subscriber sees the same sequence.
	m.fanout.Broadcast(roomID, data)

	m.sendCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("room", roomID)))
	return nil
}

// Disconnect unsubscribes the connection immediately, marks its membership
// offline and announces user-left to the remaining subscribers. A connID
// with no matching membership is a no-op, not an error (duplicate
// disconnects happen).
func (m *Manager) Disconnect(ctx context.Context, connID string) error {
	m.fanout.Unsubscribe(connID)

	mem, err := m.store.MarkOffline(ctx, connID)
	if errors.Is(err, store.ErrNotFound) {
		slog.DebugContext(ctx, "Disconnect with no membership", "conn", connID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("disconnect %q: %w", connID, err)
	}

	left, err := event.Encode(event.TypeUserLeft, event.Presence{
		Username:  mem.Username,
		Message:   mem.Username + " left the room",
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("disconnect %q: %w", connID, err)
	}
	m.fanout.Broadcast(mem.RoomID, left)

	m.disconnectCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("room", mem.RoomID)))
	slog.InfoContext(ctx, "User left room", "user", mem.Username, "room", mem.RoomID, "conn", connID)
	return nil
}
