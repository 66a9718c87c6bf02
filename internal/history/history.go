// Package history is the read path: recent messages and current online
// users per room, plus idempotent room creation for the query surface.
package history

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/amnnrajbhar/chat-room/internal/store"
	"github.com/amnnrajbhar/chat-room/pkg/otelhelper"
)

// DefaultLimit is the page size for recent-message reads.
const DefaultLimit = 50

// Store is the slice of the store adapter the history service reads from.
type Store interface {
	RecentMessages(ctx context.Context, roomID string, limit int) ([]store.Message, error)
	OnlineMembers(ctx context.Context, roomID string) ([]store.Membership, error)
	GetOrCreateRoom(ctx context.Context, roomID, name string) (*store.Room, error)
}

// OnlineUser is one online room member in a query response.
type OnlineUser struct {
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Service answers read-only room queries.
type Service struct {
	store Store

	queryCounter  metric.Int64Counter
	queryDuration metric.Float64Histogram
}

// NewService wires the read path.
func NewService(st Store) *Service {
	meter := otel.Meter("history-service")
	queryCounter, _ := meter.Int64Counter("history_queries_total",
		metric.WithDescription("Total history and presence queries"))
	queryDuration, _ := otelhelper.NewDurationHistogram(meter,
		"history_query_duration_seconds", "History query duration")

	return &Service{
		store:         st,
		queryCounter:  queryCounter,
		queryDuration: queryDuration,
	}
}

// RecentMessages returns up to limit messages for the room in chronological
// order. The store is queried newest-first for the index's benefit and the
// page is reversed here. Fewer than limit messages means all of them.
func (s *Service) RecentMessages(ctx context.Context, roomID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := time.Now()

	newest, err := s.store.RecentMessages(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	ascending := make([]store.Message, len(newest))
	for i, msg := range newest {
		ascending[len(newest)-1-i] = msg
	}

	s.record(ctx, "messages", roomID, start)
	return ascending, nil
}

// OnlineUsers returns the usernames and join times of the room's online
// memberships.
func (s *Service) OnlineUsers(ctx context.Context, roomID string) ([]OnlineUser, error) {
	start := time.Now()

	members, err := s.store.OnlineMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	users := make([]OnlineUser, len(members))
	for i, m := range members {
		users[i] = OnlineUser{Username: m.Username, JoinedAt: m.JoinedAt}
	}

	s.record(ctx, "users", roomID, start)
	return users, nil
}

// GetOrCreateRoom returns the room, creating it with the optional display
// name on first call. Idempotent: repeat calls see the original created_at.
func (s *Service) GetOrCreateRoom(ctx context.Context, roomID, name string) (*store.Room, error) {
	start := time.Now()

	room, err := s.store.GetOrCreateRoom(ctx, roomID, name)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	s.record(ctx, "room", roomID, start)
	return room, nil
}

func (s *Service) record(ctx context.Context, query, roomID string, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("query", query),
		attribute.String("room", roomID),
	)
	s.queryCounter.Add(ctx, 1, attrs)
	s.queryDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
