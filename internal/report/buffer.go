package report

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// pendingReading is a formatted reading waiting for the broker.
type pendingReading struct {
	id      uuid.UUID
	payload []byte
}

// backlog is a bounded FIFO of readings not yet accepted by the broker. When
// full, the oldest reading is discarded. Not safe for concurrent use.
type backlog struct {
	items   []pendingReading
	first   int
	count   int
	dropped int64
	warned  bool
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{items: make([]pendingReading, capacity)}
}

// add appends r, discarding the oldest reading if the backlog is full.
func (b *backlog) add(r pendingReading) {
	n := len(b.items)
	if b.count == n {
		old := b.items[b.first]
		b.first = (b.first + 1) % n
		b.count--
		b.dropped++
		entry := logrus.WithFields(logrus.Fields{"capacity": n, "event_id": old.id})
		if !b.warned {
			entry.Warn("mqtt backlog full, discarding oldest reading")
			b.warned = true
		} else {
			entry.Debug("mqtt backlog full, discarding oldest reading")
		}
	}
	b.items[(b.first+b.count)%n] = r
	b.count++
}

// front returns the oldest reading without removing it.
func (b *backlog) front() (pendingReading, bool) {
	if b.count == 0 {
		return pendingReading{}, false
	}
	return b.items[b.first], true
}

// pop removes the oldest reading.
func (b *backlog) pop() {
	if b.count == 0 {
		return
	}
	b.items[b.first] = pendingReading{}
	b.first = (b.first + 1) % len(b.items)
	b.count--
	if b.count == 0 {
		b.warned = false
	}
}

func (b *backlog) len() int {
	return b.count
}
