package loadcell

import (
	"errors"
	"sync"
)

// FakeSensor is a test double that returns scripted raw readings.
type FakeSensor struct {
	mu sync.Mutex

	// Samples contains scripted raw readings (before tare).
	// Each call to ReadRaw() consumes the next sample.
	Samples []float64

	// index tracks current position in Samples
	index int

	// offset is subtracted from every sample after a Tare
	offset float64
	last   float64

	// ReadError, if set, will be returned by ReadRaw()
	ReadError error

	// TareError, if set, will be returned by Tare()
	TareError error

	tares  int
	reads  int
	closed bool
}

// NewFakeSensor creates a FakeSensor with the given samples.
func NewFakeSensor(samples ...float64) *FakeSensor {
	return &FakeSensor{Samples: samples}
}

// ReadRaw returns the next scripted sample minus the tare offset.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeSensor) ReadRaw() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	f.reads++
	f.last = sample
	return sample - f.offset, nil
}

// Tare makes the most recently read sample the new zero.
func (f *FakeSensor) Tare() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.TareError != nil {
		return f.TareError
	}
	f.tares++
	f.offset = f.last
	return nil
}

// Close marks the sensor as closed.
func (f *FakeSensor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Append adds samples to the script.
func (f *FakeSensor) Append(samples ...float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = append(f.Samples, samples...)
}

// SetReadError sets or clears the read error.
func (f *FakeSensor) SetReadError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadError = err
}

// Tares returns how many successful tares were performed.
func (f *FakeSensor) Tares() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tares
}

// Reads returns how many successful reads were performed.
func (f *FakeSensor) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Closed reports whether Close was called.
func (f *FakeSensor) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
