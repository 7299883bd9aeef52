package report

import (
	"testing"

	"github.com/google/uuid"
)

func reading(i int) pendingReading {
	return pendingReading{id: uuid.New(), payload: []byte{byte(i)}}
}

func drain(b *backlog) []byte {
	var out []byte
	for {
		r, ok := b.front()
		if !ok {
			return out
		}
		out = append(out, r.payload[0])
		b.pop()
	}
}

func TestBacklogEmpty(t *testing.T) {
	b := newBacklog(4)
	if _, ok := b.front(); ok {
		t.Error("front of empty backlog should report false")
	}
	b.pop()
	if b.len() != 0 {
		t.Errorf("len: got %d, want 0", b.len())
	}
}

func TestBacklogFIFO(t *testing.T) {
	b := newBacklog(10)
	for i := 0; i < 5; i++ {
		b.add(reading(i))
	}
	if b.len() != 5 {
		t.Fatalf("len: got %d, want 5", b.len())
	}

	got := drain(b)
	for i, v := range got {
		if v != byte(i) {
			t.Errorf("item %d: got %d", i, v)
		}
	}
	if len(got) != 5 {
		t.Errorf("drained %d, want 5", len(got))
	}
}

func TestBacklogFullDiscardsOldest(t *testing.T) {
	b := newBacklog(5)
	// 0..7 in, 3..7 kept
	for i := 0; i < 8; i++ {
		b.add(reading(i))
	}
	if b.dropped != 3 {
		t.Errorf("dropped: got %d, want 3", b.dropped)
	}

	got := drain(b)
	if len(got) != 5 {
		t.Fatalf("drained %d, want 5", len(got))
	}
	for i, v := range got {
		if want := byte(i + 3); v != want {
			t.Errorf("item %d: got %d, want %d", i, v, want)
		}
	}
}

func TestBacklogFrontIsStableUntilPop(t *testing.T) {
	b := newBacklog(3)
	b.add(reading(1))
	b.add(reading(2))

	r1, _ := b.front()
	r2, _ := b.front()
	if r1.id != r2.id {
		t.Error("front changed without pop")
	}
	b.pop()
	r3, _ := b.front()
	if r3.payload[0] != 2 {
		t.Errorf("after pop: got %d, want 2", r3.payload[0])
	}
}

func TestBacklogWrapsAcrossCycles(t *testing.T) {
	b := newBacklog(3)
	for cycle := 0; cycle < 4; cycle++ {
		b.add(reading(cycle * 10))
		b.add(reading(cycle*10 + 1))
		got := drain(b)
		if len(got) != 2 || got[0] != byte(cycle*10) || got[1] != byte(cycle*10+1) {
			t.Errorf("cycle %d: got %v", cycle, got)
		}
	}
}

func TestBacklogMinimumCapacity(t *testing.T) {
	b := newBacklog(0)
	b.add(reading(1))
	b.add(reading(2))
	if b.len() != 1 {
		t.Fatalf("len: got %d, want 1", b.len())
	}
	if r, _ := b.front(); r.payload[0] != 2 {
		t.Errorf("kept %d, want newest 2", r.payload[0])
	}
}
