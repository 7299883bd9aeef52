package gpio

import (
	"sync"
	"time"
)

// FakeWatcher is a test double that delivers presses on demand.
type FakeWatcher struct {
	presses chan Press
	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewFakeWatcher creates a FakeWatcher with the same single-slot channel as
// the real watcher.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{presses: make(chan Press, 1)}
}

// Press simulates a button press at t. Returns false if it was dropped.
func (f *FakeWatcher) Press(b Button, t time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.presses <- Press{Button: b, Time: t}:
		return true
	default:
		f.dropped++
		return false
	}
}

// Presses returns the press channel.
func (f *FakeWatcher) Presses() <-chan Press {
	return f.presses
}

// Dropped returns how many presses were dropped.
func (f *FakeWatcher) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close closes the press channel.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.presses)
	}
	return nil
}

// Closed reports whether Close was called.
func (f *FakeWatcher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
