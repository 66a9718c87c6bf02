package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amnnrajbhar/chat-room/internal/store"
)

type fakeStore struct {
	messages []store.Message // stored newest-first, as the adapter returns them
	members  []store.Membership
	rooms    map[string]*store.Room

	gotLimit int
	failWith error
}

func (f *fakeStore) RecentMessages(_ context.Context, roomID string, limit int) ([]store.Message, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.gotLimit = limit
	if limit > len(f.messages) {
		limit = len(f.messages)
	}
	return f.messages[:limit], nil
}

func (f *fakeStore) OnlineMembers(_ context.Context, roomID string) ([]store.Membership, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.members, nil
}

func (f *fakeStore) GetOrCreateRoom(_ context.Context, roomID, name string) (*store.Room, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.rooms == nil {
		f.rooms = make(map[string]*store.Room)
	}
	if room, ok := f.rooms[roomID]; ok {
		return room, nil
	}
	room := &store.Room{RoomID: roomID, Name: name, CreatedAt: time.Now(), IsActive: true}
	f.rooms[roomID] = room
	return room, nil
}

func TestRecentMessages_ChronologicalOrder(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{messages: []store.Message{
		{ID: 3, Text: "three", Timestamp: base.Add(3 * time.Second)},
		{ID: 2, Text: "two", Timestamp: base.Add(2 * time.Second)},
		{ID: 1, Text: "one", Timestamp: base.Add(time.Second)},
	}}
	svc := NewService(st)

	msgs, err := svc.RecentMessages(context.Background(), "general", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []int64{1, 2, 3} {
		if msgs[i].ID != want {
			t.Errorf("Position %d: expected id %d, got %d", i, want, msgs[i].ID)
		}
	}
}

func TestRecentMessages_DefaultLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero falls back", 0, DefaultLimit},
		{"negative falls back", -5, DefaultLimit},
		{"explicit passes through", 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeStore{}
			svc := NewService(st)
			if _, err := svc.RecentMessages(context.Background(), "general", tt.limit); err != nil {
				t.Fatalf("RecentMessages: %v", err)
			}
			if st.gotLimit != tt.want {
				t.Errorf("Expected store limit %d, got %d", tt.want, st.gotLimit)
			}
		})
	}
}

func TestRecentMessages_Empty(t *testing.T) {
	svc := NewService(&fakeStore{})

	msgs, err := svc.RecentMessages(context.Background(), "general", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected empty slice for room with no messages, got %d", len(msgs))
	}
}

func TestRecentMessages_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewService(&fakeStore{failWith: boom})

	if _, err := svc.RecentMessages(context.Background(), "general", 10); !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped store error, got %v", err)
	}
}

func TestOnlineUsers(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{members: []store.Membership{
		{Username: "alice", RoomID: "general", IsOnline: true, JoinedAt: base},
		{Username: "bob", RoomID: "general", IsOnline: true, JoinedAt: base.Add(time.Minute)},
	}}
	svc := NewService(st)

	users, err := svc.OnlineUsers(context.Background(), "general")
	if err != nil {
		t.Fatalf("OnlineUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].Username != "alice" || !users[0].JoinedAt.Equal(base) {
		t.Errorf("Unexpected first user: %+v", users[0])
	}
	if users[1].Username != "bob" {
		t.Errorf("Unexpected second user: %+v", users[1])
	}
}

func TestGetOrCreateRoom_Idempotent(t *testing.T) {
	svc := NewService(&fakeStore{})
	ctx := context.Background()

	first, err := svc.GetOrCreateRoom(ctx, "general", "General")
	if err != nil {
		t.Fatalf("GetOrCreateRoom: %v", err)
	}
	again, err := svc.GetOrCreateRoom(ctx, "general", "Renamed")
	if err != nil {
		t.Fatalf("GetOrCreateRoom: %v", err)
	}

	if again.Name != "General" {
		t.Errorf("Expected repeat call to keep original name, got %q", again.Name)
	}
	if !again.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected repeat call to keep original created_at")
	}
}
