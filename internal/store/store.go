// Package store is the durable state adapter for the chat relay. It owns the
// rooms, messages and memberships collections in Postgres; everything else in
// the process mutates state only through it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ErrNotFound is returned when a point lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Room is a named channel grouping connections and messages. Rooms are
// created lazily and never deleted; IsActive is written only by the sweeper.
type Room struct {
	RoomID    string    `json:"roomId"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	IsActive  bool      `json:"isActive"`
}

// Message is an immutable chat message. ID and Timestamp are assigned by the
// database on insert.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Membership is the presence record for one (username, room) pair. Exactly
// one row exists per pair; the pair is the upsert key. ConnID is empty while
// the user is offline.
type Membership struct {
	Username string    `json:"username"`
	RoomID   string    `json:"roomId"`
	JoinedAt time.Time `json:"joinedAt"`
	IsOnline bool      `json:"isOnline"`
	ConnID   string    `json:"-"`
}

// Store wraps the Postgres connection pool.
type Store struct {
	db *sql.DB
}

// Open opens a traced Postgres pool. It does not verify connectivity; the
// caller is expected to ping with retry before serving.
func Open(dbURL string) (*Store, error) {
	db, err := otelsql.Open("postgres", dbURL,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// New wraps an existing pool, mainly for tests.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the idempotent schema. The (room_id, timestamp) index
// backs the newest-first history query.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id    TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			is_active  BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id        BIGSERIAL PRIMARY KEY,
			room_id   TEXT NOT NULL,
			username  TEXT NOT NULL,
			text      TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS messages_room_timestamp_idx
			ON messages (room_id, timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS memberships (
			username  TEXT NOT NULL,
			room_id   TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			is_online BOOLEAN NOT NULL DEFAULT TRUE,
			conn_id   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (username, room_id)
		)`,
		`CREATE INDEX IF NOT EXISTS memberships_conn_idx
			ON memberships (conn_id) WHERE conn_id <> ''`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
