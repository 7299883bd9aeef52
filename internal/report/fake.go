package report

import (
	"context"
	"sync"
)

// FakeSink records reported events for test assertions.
type FakeSink struct {
	mu sync.Mutex

	// Result is returned by Report (default Accepted).
	Result Result

	// Block, if set, makes Report wait until it is closed or ctx ends.
	Block chan struct{}

	events []Event
}

// NewFakeSink creates a FakeSink that accepts everything.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// Report records ev.
func (f *FakeSink) Report(ctx context.Context, ev Event) Result {
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return Unreachable
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.Result
}

// Events returns the recorded events.
func (f *FakeSink) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

// Reset clears recorded events.
func (f *FakeSink) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}
