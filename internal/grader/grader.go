// Package grader runs the measurement loop: it samples the load cell,
// drives the stability window, state machine, auto-zero and classifier, and
// emits audio cues and reports. All measurement state is owned by the
// goroutine running Controller.Run.
package grader

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sweeney/fruit-grader/internal/audio"
	"github.com/sweeney/fruit-grader/internal/calibration"
	"github.com/sweeney/fruit-grader/internal/loadcell"
	"github.com/sweeney/fruit-grader/internal/logic"
	"github.com/sweeney/fruit-grader/internal/report"
	"github.com/sweeney/fruit-grader/internal/status"
)

// ErrStopped is returned by the Trigger methods once Run has returned.
var ErrStopped = errors.New("controller stopped")

// Sounds names the cues for non-grade events.
type Sounds struct {
	Zero        string
	Error       string
	Overload    string
	Calibrated  string
	SensorRetry string
	Tare        string
}

// Config holds the loop parameters.
type Config struct {
	DeviceID           int
	WindowSize         int
	StabilityThreshold float64
	ZeroThreshold      float64
	AllowDirectStable  bool

	AutoZeroEnabled bool
	AutoZero        logic.AutoZeroConfig

	MinWeight float64
	MaxWeight float64
	Bands     []logic.GradeBand

	Calibration calibration.Procedure
	Sounds      Sounds
}

// AudioQueue accepts cue requests without blocking.
type AudioQueue interface {
	TryEnqueue(audio.Request) bool
}

// Reporter accepts report events without blocking.
type Reporter interface {
	TrySubmit(report.Event) bool
}

// Deps are the collaborators of a Controller. Audio, Reporter and
// Connection may be nil.
type Deps struct {
	Sensor     loadcell.Sensor
	Store      calibration.Store
	Audio      AudioQueue
	Reporter   Reporter
	Connection report.ConnectionStatus
	Tracker    *status.Tracker
	Now        func() time.Time
}

type commandKind int

const (
	cmdTare commandKind = iota
	cmdCalibrate
)

type command struct {
	kind      commandKind
	reference float64
	reply     chan commandResult
}

type commandResult struct {
	factor float64
	err    error
}

// Controller is the measurement loop.
type Controller struct {
	cfg  Config
	deps Deps

	window     *logic.Window
	machine    *logic.Machine
	autoZero   *logic.AutoZero
	classifier *logic.Classifier
	overload   *rate.Limiter

	factor     float64
	overloaded bool
	readErrors int

	cmds    chan command
	stopped chan struct{}
	log     *logrus.Entry
}

// New builds a controller and loads the stored calibration factor. The
// band table must already be validated.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Sensor == nil {
		return nil, errors.New("grader: sensor is required")
	}
	if deps.Store == nil {
		return nil, errors.New("grader: calibration store is required")
	}
	if err := logic.ValidateBands(cfg.MinWeight, cfg.Bands); err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Tracker == nil {
		deps.Tracker = status.NewTracker(deps.Now(), status.Config{DeviceID: cfg.DeviceID}, cfg.Bands)
	}

	c := &Controller{
		cfg:        cfg,
		deps:       deps,
		window:     logic.NewWindow(cfg.WindowSize, cfg.StabilityThreshold),
		machine:    logic.NewMachine(cfg.ZeroThreshold, cfg.AllowDirectStable),
		autoZero:   logic.NewAutoZero(cfg.AutoZero),
		classifier: logic.NewClassifier(cfg.MinWeight, cfg.Bands),
		overload:   rate.NewLimiter(rate.Every(time.Second), 1),
		factor:     deps.Store.Load(),
		cmds:       make(chan command),
		stopped:    make(chan struct{}),
		log:        logrus.WithField("component", "grader"),
	}
	deps.Tracker.SetFactor(c.factor)
	c.log.WithField("factor", c.factor).Info("calibration loaded")
	return c, nil
}

// Factor returns the active calibration factor. Only safe from the loop
// goroutine or before Run.
func (c *Controller) Factor() float64 {
	return c.factor
}

// State returns the measurement state. Only safe from the loop goroutine or
// before Run.
func (c *Controller) State() logic.State {
	return c.machine.State()
}

// Tracker returns the status tracker the controller writes to.
func (c *Controller) Tracker() *status.Tracker {
	return c.deps.Tracker
}

// Boot tares the empty scale. A zero tare counts as an auto-zero for the
// minimum-interval rule.
func (c *Controller) Boot(now time.Time) error {
	if err := c.deps.Sensor.Tare(); err != nil {
		c.play(c.cfg.Sounds.Error, now)
		return err
	}
	c.autoZero.Done(now)
	c.window.Clear()
	c.deps.Tracker.SetSensorReady(true)
	c.play(c.cfg.Sounds.Tare, now)
	c.log.Info("boot tare done")
	return nil
}

// Run boots the scale and processes ticks and commands until ctx is
// cancelled or a tick fails fatally.
func (c *Controller) Run(ctx context.Context, tick <-chan time.Time) error {
	defer close(c.stopped)

	if err := c.Boot(c.deps.Now()); err != nil {
		c.log.WithError(err).Error("boot tare failed, continuing with stale zero")
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("measurement loop stopped")
			return nil
		case cmd := <-c.cmds:
			c.handle(cmd)
		case now := <-tick:
			if err := c.Tick(now); err != nil {
				return err
			}
		}
	}
}

// TriggerManualOffset tares the scale on the loop goroutine and waits for
// the result.
func (c *Controller) TriggerManualOffset(ctx context.Context) error {
	_, err := c.do(ctx, command{kind: cmdTare})
	return err
}

// TriggerCalibration calibrates against reference grams on the loop
// goroutine and returns the new factor.
func (c *Controller) TriggerCalibration(ctx context.Context, reference float64) (float64, error) {
	return c.do(ctx, command{kind: cmdCalibrate, reference: reference})
}

func (c *Controller) do(ctx context.Context, cmd command) (float64, error) {
	cmd.reply = make(chan commandResult, 1)
	select {
	case c.cmds <- cmd:
	case <-c.stopped:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r.factor, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Controller) handle(cmd command) {
	now := c.deps.Now()
	var r commandResult
	switch cmd.kind {
	case cmdTare:
		r.err = c.ManualOffset(now)
	case cmdCalibrate:
		r.factor, r.err = c.Calibrate(cmd.reference, now)
	}
	cmd.reply <- r
}

func (c *Controller) play(sound string, now time.Time) {
	if c.deps.Audio == nil || sound == "" {
		return
	}
	if !c.deps.Audio.TryEnqueue(audio.Request{Sound: sound, RequestedAt: now}) {
		c.log.WithField("sound", sound).Debug("audio busy, cue dropped")
	}
}
