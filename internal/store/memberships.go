package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertMembership activates the membership for (username, roomID) in one
// conditional write keyed on the pair: is_online set, conn_id replaced,
// joined_at refreshed. Concurrent joins for the same identity can never
// produce two rows; the last writer's conn_id wins.
func (s *Store) UpsertMembership(ctx context.Context, username, roomID, connID string) (*Membership, error) {
	m := Membership{Username: username, RoomID: roomID, IsOnline: true, ConnID: connID}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO memberships (username, room_id, is_online, conn_id, joined_at)
		 VALUES ($1, $2, TRUE, $3, now())
		 ON CONFLICT (username, room_id)
		 DO UPDATE SET is_online = TRUE, conn_id = EXCLUDED.conn_id, joined_at = now()
		 RETURNING joined_at`,
		username, roomID, connID,
	).Scan(&m.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("store: upsert membership %s/%s: %w", username, roomID, err)
	}
	return &m, nil
}

// MarkOffline finds the membership bound to connID, marks it offline and
// clears the connection handle. Returns ErrNotFound when no membership holds
// that connID (duplicate disconnects are expected and harmless).
func (s *Store) MarkOffline(ctx context.Context, connID string) (*Membership, error) {
	var m Membership
	err := s.db.QueryRowContext(ctx,
		`UPDATE memberships SET is_online = FALSE, conn_id = ''
		 WHERE conn_id = $1
		 RETURNING username, room_id, joined_at`,
		connID,
	).Scan(&m.Username, &m.RoomID, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: mark offline %q: %w", connID, err)
	}
	return &m, nil
}

// OnlineMembers returns the online memberships for a room.
func (s *Store) OnlineMembers(ctx context.Context, roomID string) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, room_id, joined_at FROM memberships
		 WHERE room_id = $1 AND is_online
		 ORDER BY joined_at`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: online members for %q: %w", roomID, err)
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		m := Membership{IsOnline: true}
		if err := rows.Scan(&m.Username, &m.RoomID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("store: scan membership: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: online members for %q: %w", roomID, err)
	}
	return members, nil
}

// PurgeStaleMemberships deletes offline memberships whose joined_at is older
// than cutoff and returns the number deleted. Bounds growth of offline rows;
// a user rejoining later simply gets a fresh row from the upsert.
func (s *Store) PurgeStaleMemberships(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE NOT is_online AND joined_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("store: purge stale memberships: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
