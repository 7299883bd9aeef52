package gpio

import (
	"testing"
	"time"
)

func TestFakeWatcherPress(t *testing.T) {
	f := NewFakeWatcher()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if !f.Press(ButtonTare, now) {
		t.Fatal("first press should be delivered")
	}

	p := <-f.Presses()
	if p.Button != ButtonTare {
		t.Errorf("expected TARE, got %s", p.Button)
	}
	if !p.Time.Equal(now) {
		t.Errorf("unexpected time: %v", p.Time)
	}
}

func TestFakeWatcherDropsWhilePending(t *testing.T) {
	f := NewFakeWatcher()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	f.Press(ButtonTare, now)
	if f.Press(ButtonCalibrate, now) {
		t.Error("second press should be dropped while first is pending")
	}
	if f.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", f.Dropped())
	}

	p := <-f.Presses()
	if p.Button != ButtonTare {
		t.Errorf("expected the first press to survive, got %s", p.Button)
	}
}

func TestFakeWatcherClose(t *testing.T) {
	f := NewFakeWatcher()

	if f.Closed() {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed() {
		t.Error("should be closed after Close()")
	}
	if _, ok := <-f.Presses(); ok {
		t.Error("press channel should be closed")
	}
	if f.Press(ButtonTare, time.Now()) {
		t.Error("press after close should not be delivered")
	}
	// Double close is harmless.
	if err := f.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
