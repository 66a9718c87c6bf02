package store

import (
	"context"
	"fmt"
)

// GetOrCreateRoom returns the room for roomID, creating it with the given
// display name if it does not exist. Repeat calls return the existing row
// unchanged (same created_at), regardless of the name argument.
func (s *Store) GetOrCreateRoom(ctx context.Context, roomID, name string) (*Room, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (room_id, name) VALUES ($1, $2)
		 ON CONFLICT (room_id) DO NOTHING`,
		roomID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create room %q: %w", roomID, err)
	}

	var room Room
	err = s.db.QueryRowContext(ctx,
		`SELECT room_id, name, created_at, is_active FROM rooms WHERE room_id = $1`,
		roomID,
	).Scan(&room.RoomID, &room.Name, &room.CreatedAt, &room.IsActive)
	if err != nil {
		return nil, fmt.Errorf("store: get room %q: %w", roomID, err)
	}
	return &room, nil
}

// DeactivateIdleRooms flags every room without an online membership as
// inactive and returns the number of rooms flagged. It never sets is_active
// back to true: the flag is an eventually-consistent hint, matching how the
// original system behaved, and nothing may gate functional behavior on it.
func (s *Store) DeactivateIdleRooms(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET is_active = FALSE
		 WHERE is_active
		   AND room_id NOT IN (SELECT DISTINCT room_id FROM memberships WHERE is_online)`,
	)
	if err != nil {
		return 0, fmt.Errorf("store: deactivate idle rooms: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
