package presence

import "sync"

// roomLanes hands out one mutex per room so persist-then-broadcast runs as a
// sequential lane per room. Lanes are never reclaimed; the set of rooms is
// bounded by the store, which never deletes rooms either.
type roomLanes struct {
	mu    sync.Mutex
	lanes map[string]*sync.Mutex
}

func newRoomLanes() *roomLanes {
	return &roomLanes{lanes: make(map[string]*sync.Mutex)}
}

// lock acquires the lane for roomID and returns its unlock function.
func (l *roomLanes) lock(roomID string) func() {
	l.mu.Lock()
	lane, ok := l.lanes[roomID]
	if !ok {
		lane = &sync.Mutex{}
		l.lanes[roomID] = lane
	}
	l.mu.Unlock()

	lane.Lock()
	return lane.Unlock
}
