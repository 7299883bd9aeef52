// Package audio plays feedback cues without blocking the measurement loop.
//
// Producers call Queue.TryEnqueue, which never blocks: the queue holds at
// most one pending request and drops anything that arrives while the slot is
// taken. A single Player goroutine owns the output Device.
package audio

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrSoundNotFound is returned by Device.Open for an unknown sound.
var ErrSoundNotFound = errors.New("sound not found")

// Request asks for one sound to be played.
type Request struct {
	Sound       string
	RequestedAt time.Time
}

// Handle is an open sound on a Device.
type Handle interface {
	Sound() string
}

// Device is an audio output the Player drives step by step.
type Device interface {
	// Open prepares sound for playback.
	Open(sound string) (Handle, error)
	// DecodeStep plays the next chunk; more is false once the sound is done.
	DecodeStep(h Handle) (more bool, err error)
	// Stop halts and releases h. Safe to call after the sound finished.
	Stop(h Handle)
	// Reinit resets the output between sounds.
	Reinit() error
}

// Queue is the capacity-1 request slot between producers and the Player.
type Queue struct {
	ch      chan Request
	dropped atomic.Int64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{ch: make(chan Request, 1)}
}

// TryEnqueue offers req without blocking. It reports false when the slot is
// already taken; the request is dropped.
func (q *Queue) TryEnqueue(req Request) bool {
	select {
	case q.ch <- req:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Len is 1 while a request is waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many requests were rejected by TryEnqueue.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}
