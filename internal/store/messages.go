package store

import (
	"context"
	"fmt"
)

// InsertMessage persists a message and returns it with the server-assigned
// id and timestamp. Timestamps are assigned by the database at insert, so
// they are non-decreasing in insert order.
func (s *Store) InsertMessage(ctx context.Context, roomID, username, text string) (*Message, error) {
	msg := Message{RoomID: roomID, Username: username, Text: text}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (room_id, username, text) VALUES ($1, $2, $3)
		 RETURNING id, timestamp`,
		roomID, username, text,
	).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("store: insert message in %q: %w", roomID, err)
	}
	return &msg, nil
}

// RecentMessages returns up to limit messages for the room, newest first.
// Callers wanting chronological order reverse the slice.
func (s *Store) RecentMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, username, text, timestamp FROM messages
		 WHERE room_id = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages for %q: %w", roomID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Username, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent messages for %q: %w", roomID, err)
	}
	return messages, nil
}
