package fanout

import (
	"fmt"
	"sync"
	"testing"
)

type captureConn struct {
	mu  sync.Mutex
	got [][]byte
}

func (c *captureConn) Deliver(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, data)
}

func (c *captureConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestFanout_BroadcastReachesSubscribers(t *testing.T) {
	f := New()
	a, b := &captureConn{}, &captureConn{}
	f.Subscribe("general", "conn-a", a)
	f.Subscribe("general", "conn-b", b)

	n := f.Broadcast("general", []byte("hello"))

	if n != 2 {
		t.Errorf("Expected 2 deliveries, got %d", n)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("Expected both subscribers to receive the event, got a=%d b=%d", a.count(), b.count())
	}
}

func TestFanout_BroadcastExcludes(t *testing.T) {
	f := New()
	a, b := &captureConn{}, &captureConn{}
	f.Subscribe("general", "conn-a", a)
	f.Subscribe("general", "conn-b", b)

	n := f.Broadcast("general", []byte("hello"), "conn-a")

	if n != 1 {
		t.Errorf("Expected 1 delivery, got %d", n)
	}
	if a.count() != 0 {
		t.Errorf("Excluded connection received %d events", a.count())
	}
	if b.count() != 1 {
		t.Errorf("Expected conn-b to receive the event, got %d", b.count())
	}
}

func TestFanout_BroadcastOtherRoom(t *testing.T) {
	f := New()
	a := &captureConn{}
	f.Subscribe("general", "conn-a", a)

	if n := f.Broadcast("random", []byte("hello")); n != 0 {
		t.Errorf("Expected no deliveries to other rooms, got %d", n)
	}
	if a.count() != 0 {
		t.Errorf("Subscriber of another room received %d events", a.count())
	}
}

func TestFanout_Unsubscribe(t *testing.T) {
	f := New()
	a := &captureConn{}
	f.Subscribe("general", "conn-a", a)

	room, ok := f.Unsubscribe("conn-a")
	if !ok || room != "general" {
		t.Fatalf("Expected to unsubscribe from general, got %q ok=%v", room, ok)
	}

	f.Broadcast("general", []byte("hello"))
	if a.count() != 0 {
		t.Errorf("Unsubscribed connection received %d events", a.count())
	}

	if _, ok := f.Unsubscribe("conn-a"); ok {
		t.Error("Expected duplicate unsubscribe to report ok=false")
	}
}

func TestFanout_SubscribeMovesRooms(t *testing.T) {
	f := New()
	a := &captureConn{}
	f.Subscribe("general", "conn-a", a)
	f.Subscribe("random", "conn-a", a)

	if n := f.Broadcast("general", []byte("old room")); n != 0 {
		t.Errorf("Expected old room to be empty, got %d deliveries", n)
	}
	if n := f.Broadcast("random", []byte("new room")); n != 1 {
		t.Errorf("Expected 1 delivery in new room, got %d", n)
	}
	if f.RoomCount() != 1 {
		t.Errorf("Expected 1 room, got %d", f.RoomCount())
	}
}

func TestFanout_Counts(t *testing.T) {
	f := New()
	f.Subscribe("general", "conn-a", &captureConn{})
	f.Subscribe("general", "conn-b", &captureConn{})
	f.Subscribe("random", "conn-c", &captureConn{})

	if f.RoomCount() != 2 {
		t.Errorf("Expected 2 rooms, got %d", f.RoomCount())
	}
	if f.SubscriberCount() != 3 {
		t.Errorf("Expected 3 subscribers, got %d", f.SubscriberCount())
	}

	f.Unsubscribe("conn-c")
	if f.RoomCount() != 1 {
		t.Errorf("Expected empty room to be dropped, got %d rooms", f.RoomCount())
	}
}

func TestFanout_Concurrency(t *testing.T) {
	f := New()
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(i int) {
			for j := 0; j < 100; j++ {
				connID := fmt.Sprintf("conn-%d-%d", i, j)
				f.Subscribe("general", connID, &captureConn{})
				f.Broadcast("general", []byte("x"))
				f.Unsubscribe(connID)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if f.SubscriberCount() != 0 {
		t.Errorf("Expected all connections unsubscribed, got %d", f.SubscriberCount())
	}
}
