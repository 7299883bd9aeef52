package audio

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultReinitDelay is the pause after each sound before the next request.
const DefaultReinitDelay = 100 * time.Millisecond

// Player consumes the Queue and plays each request on its Device.
type Player struct {
	dev         Device
	q           *Queue
	reinitDelay time.Duration

	played    atomic.Int64
	preempted atomic.Int64
	skipped   atomic.Int64
}

// NewPlayer returns a Player for q on dev.
func NewPlayer(dev Device, q *Queue, reinitDelay time.Duration) *Player {
	return &Player{dev: dev, q: q, reinitDelay: reinitDelay}
}

// Run plays requests until ctx is cancelled.
func (p *Player) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-p.q.ch:
			p.play(ctx, req)
			if err := p.pause(ctx); err != nil {
				return nil
			}
		}
	}
}

// Played returns the number of sounds that ran to completion.
func (p *Player) Played() int64 { return p.played.Load() }

// Preempted returns the number of sounds cut short by a newer request.
func (p *Player) Preempted() int64 { return p.preempted.Load() }

// Skipped returns the number of requests that could not be opened or failed.
func (p *Player) Skipped() int64 { return p.skipped.Load() }

func (p *Player) play(ctx context.Context, req Request) {
	for {
		h, err := p.dev.Open(req.Sound)
		if err != nil {
			p.skipped.Add(1)
			entry := logrus.WithField("sound", req.Sound).WithError(err)
			if errors.Is(err, ErrSoundNotFound) {
				entry.Warn("sound missing, skipping")
			} else {
				entry.Error("failed to open sound")
			}
			return
		}

		next, preempted := p.stream(ctx, h)
		if !preempted {
			return
		}
		p.preempted.Add(1)
		logrus.WithFields(logrus.Fields{
			"sound": req.Sound,
			"next":  next.Sound,
		}).Debug("sound preempted")
		req = next
	}
}

// stream runs h to completion, returning early with the newer request if
// one arrives between steps.
func (p *Player) stream(ctx context.Context, h Handle) (Request, bool) {
	defer p.dev.Stop(h)
	for {
		select {
		case <-ctx.Done():
			return Request{}, false
		case next := <-p.q.ch:
			return next, true
		default:
		}

		more, err := p.dev.DecodeStep(h)
		if err != nil {
			p.skipped.Add(1)
			logrus.WithField("sound", h.Sound()).WithError(err).Error("playback failed")
			return Request{}, false
		}
		if !more {
			p.played.Add(1)
			return Request{}, false
		}
	}
}

func (p *Player) pause(ctx context.Context) error {
	if err := p.dev.Reinit(); err != nil {
		logrus.WithError(err).Warn("audio reinit failed")
	}
	if p.reinitDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.reinitDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
