package loadcell

import (
	"errors"
	"testing"
)

func TestFakeSensorRead(t *testing.T) {
	f := NewFakeSensor(1.5, 2.5, 3.5)

	for i, want := range []float64{1.5, 2.5, 3.5, 3.5} {
		got, err := f.ReadRaw()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Errorf("read %d: got %v, want %v", i, got, want)
		}
	}
	if f.Reads() != 4 {
		t.Errorf("expected 4 reads, got %d", f.Reads())
	}
}

func TestFakeSensorNoSamples(t *testing.T) {
	f := NewFakeSensor()

	if _, err := f.ReadRaw(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeSensorError(t *testing.T) {
	f := NewFakeSensor(1)
	f.SetReadError(errors.New("simulated error"))

	_, err := f.ReadRaw()
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeSensorTare(t *testing.T) {
	f := NewFakeSensor(10, 10, 25)

	f.ReadRaw()
	if err := f.Tare(); err != nil {
		t.Fatalf("tare: %v", err)
	}
	got, _ := f.ReadRaw()
	if got != 0 {
		t.Errorf("after tare: got %v, want 0", got)
	}
	got, _ = f.ReadRaw()
	if got != 15 {
		t.Errorf("loaded after tare: got %v, want 15", got)
	}
	if f.Tares() != 1 {
		t.Errorf("expected 1 tare, got %d", f.Tares())
	}
}

func TestFakeSensorTareError(t *testing.T) {
	f := NewFakeSensor(1)
	f.TareError = errors.New("bus fault")

	if err := f.Tare(); err == nil {
		t.Error("expected tare error")
	}
	if f.Tares() != 0 {
		t.Errorf("failed tare counted: %d", f.Tares())
	}
}

func TestFakeSensorClose(t *testing.T) {
	f := NewFakeSensor(1)

	if f.Closed() {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed() {
		t.Error("should be closed after Close()")
	}
}
