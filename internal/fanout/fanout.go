// Package fanout holds the process-local subscriber index: which live
// connections are in which room, and how to push bytes at them. The index is
// rebuilt from live connections only, never from the store.
package fanout

import (
	"sort"
	"sync"
)

// Conn is one live connection's delivery handle. Deliver is fire-and-forget:
// no acknowledgment, no retry, and it must not block the caller. A connection
// that is already dead may silently drop the payload.
type Conn interface {
	Deliver(data []byte)
}

// Fanout multicasts events to the connections subscribed to a room. It is
// constructed once at startup and passed by reference to every handler.
type Fanout struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn // room -> connId -> conn
	conns map[string]string          // reverse: connId -> room
}

// New returns an empty index.
func New() *Fanout {
	return &Fanout{
		rooms: make(map[string]map[string]Conn),
		conns: make(map[string]string),
	}
}

// Subscribe associates a connection with a room. A connection is in at most
// one room; subscribing again moves it.
func (f *Fanout) Subscribe(roomID, connID string, conn Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.conns[connID]; ok && prev != roomID {
		f.dropLocked(prev, connID)
	}
	if f.rooms[roomID] == nil {
		f.rooms[roomID] = make(map[string]Conn)
	}
	f.rooms[roomID][connID] = conn
	f.conns[connID] = roomID
}

// Unsubscribe removes a connection and reports which room it was in.
func (f *Fanout) Unsubscribe(connID string) (roomID string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	roomID, ok = f.conns[connID]
	if !ok {
		return "", false
	}
	f.dropLocked(roomID, connID)
	delete(f.conns, connID)
	return roomID, true
}

func (f *Fanout) dropLocked(roomID, connID string) {
	if members, ok := f.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(f.rooms, roomID)
		}
	}
}

// Broadcast delivers data to every connection subscribed to the room at the
// moment of the call, minus any excluded connection ids. Delivery order is
// stable (sorted by connection id) so all events fan out in a defined order.
func (f *Fanout) Broadcast(roomID string, data []byte, exclude ...string) int {
	f.mu.RLock()
	members := f.rooms[roomID]
	targets := make([]struct {
		id   string
		conn Conn
	}, 0, len(members))
	for id, conn := range members {
		skip := false
		for _, ex := range exclude {
			if id == ex {
				skip = true
				break
			}
		}
		if !skip {
			targets = append(targets, struct {
				id   string
				conn Conn
			}{id, conn})
		}
	}
	f.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	for _, t := range targets {
		t.conn.Deliver(data)
	}
	return len(targets)
}

// RoomCount returns the number of rooms with at least one subscriber.
func (f *Fanout) RoomCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}

// SubscriberCount returns the total number of subscribed connections.
func (f *Fanout) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.conns)
}
