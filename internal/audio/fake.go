package audio

import (
	"errors"
	"fmt"
	"sync"
)

type fakeHandle struct {
	sound string
	step  int
}

func (h *fakeHandle) Sound() string { return h.sound }

// FakeDevice is a scripted Device for tests.
type FakeDevice struct {
	mu sync.Mutex

	// Steps is the number of DecodeStep calls each sound takes (default 1).
	Steps map[string]int
	// Missing sounds fail Open with ErrSoundNotFound.
	Missing map[string]bool
	// OnStep, if set, is called after each step of a sound.
	OnStep func(sound string, step int)

	opened    []string
	completed []string
	stopped   []string
	reinits   int
}

// NewFakeDevice returns a device that plays every sound in one step.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		Steps:   map[string]int{},
		Missing: map[string]bool{},
	}
}

// Open records the sound.
func (d *FakeDevice) Open(sound string) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Missing[sound] {
		return nil, fmt.Errorf("open %s: %w", sound, ErrSoundNotFound)
	}
	d.opened = append(d.opened, sound)
	return &fakeHandle{sound: sound}, nil
}

// DecodeStep advances the handle.
func (d *FakeDevice) DecodeStep(h Handle) (bool, error) {
	fh, ok := h.(*fakeHandle)
	if !ok {
		return false, errors.New("foreign handle")
	}

	d.mu.Lock()
	fh.step++
	steps := d.Steps[fh.sound]
	if steps < 1 {
		steps = 1
	}
	done := fh.step >= steps
	if done {
		d.completed = append(d.completed, fh.sound)
	}
	hook := d.OnStep
	d.mu.Unlock()

	if hook != nil {
		hook(fh.sound, fh.step)
	}
	return !done, nil
}

// Stop records the stop.
func (d *FakeDevice) Stop(h Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = append(d.stopped, h.Sound())
}

// Reinit counts reinitialisations.
func (d *FakeDevice) Reinit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reinits++
	return nil
}

// Opened returns the sounds opened so far.
func (d *FakeDevice) Opened() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opened...)
}

// Completed returns the sounds played to the end.
func (d *FakeDevice) Completed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.completed...)
}

// Stopped returns the sounds released via Stop.
func (d *FakeDevice) Stopped() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.stopped...)
}

// Reinits returns the number of Reinit calls.
func (d *FakeDevice) Reinits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reinits
}
