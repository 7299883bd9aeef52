package report

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is the number of events that may wait for the sink.
const DefaultQueueSize = 16

// Stats counts delivery outcomes.
type Stats struct {
	Accepted    int64
	Rejected    int64
	Unreachable int64
	Dropped     int64
}

// Dispatcher decouples the control loop from a slow or offline Sink. Events
// are submitted without blocking and delivered one at a time by Run.
type Dispatcher struct {
	sink     Sink
	queue    chan Event
	onResult func(Event, Result)

	accepted    atomic.Int64
	rejected    atomic.Int64
	unreachable atomic.Int64
	dropped     atomic.Int64
}

// NewDispatcher returns a dispatcher with room for size pending events.
func NewDispatcher(sink Sink, size int) *Dispatcher {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Dispatcher{sink: sink, queue: make(chan Event, size)}
}

// OnResult registers fn to be called after each delivery. Must be set
// before Run.
func (d *Dispatcher) OnResult(fn func(Event, Result)) {
	d.onResult = fn
}

// TrySubmit queues ev, or drops it if the queue is full.
func (d *Dispatcher) TrySubmit(ev Event) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped.Add(1)
		logrus.WithFields(logrus.Fields{
			"component": "report",
			"event_id":  ev.ID,
			"grade":     ev.Grade,
		}).Warn("report queue full, dropping reading")
		return false
	}
}

// Run delivers queued events until ctx is cancelled. Events still queued at
// shutdown are not delivered.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	res := d.sink.Report(ctx, ev)
	switch res {
	case Accepted:
		d.accepted.Add(1)
	case Rejected:
		d.rejected.Add(1)
	case Unreachable:
		d.unreachable.Add(1)
	}
	logrus.WithFields(logrus.Fields{
		"component": "report",
		"event_id":  ev.ID,
		"grade":     ev.Grade,
		"weight":    ev.Weight,
		"result":    res,
	}).Info("reading reported")
	if d.onResult != nil {
		d.onResult(ev, res)
	}
}

// Stats returns a copy of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Accepted:    d.accepted.Load(),
		Rejected:    d.rejected.Load(),
		Unreachable: d.unreachable.Load(),
		Dropped:     d.dropped.Load(),
	}
}

// Pending returns the number of queued events not yet handed to the sink.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}
