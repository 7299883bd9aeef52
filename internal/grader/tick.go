package grader

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/fruit-grader/internal/logic"
	"github.com/sweeney/fruit-grader/internal/report"
)

// Tick runs one measurement cycle. A sensor read failure skips the tick.
// The only error returned is a classification with no matching band, which
// the caller must treat as fatal.
func (c *Controller) Tick(now time.Time) error {
	raw, err := c.deps.Sensor.ReadRaw()
	if err != nil {
		c.readErrors++
		entry := c.log.WithError(err).WithField("consecutive", c.readErrors)
		if c.readErrors == 1 {
			entry.Warn("sensor read failed, skipping tick")
		} else {
			entry.Debug("sensor read failed, skipping tick")
		}
		return nil
	}
	if c.readErrors > 0 {
		c.log.WithField("skipped", c.readErrors).Info("sensor reads recovered")
		c.readErrors = 0
	}

	w := logic.Calibrated(raw, c.factor)
	c.window.Add(w)
	stable := c.window.IsStable()
	tr := c.machine.Step(w, stable)

	if tr.Changed() {
		c.log.WithFields(logrus.Fields{
			"from":   tr.From,
			"to":     tr.To,
			"weight": logic.DisplayGrams(w),
		}).Debug("state changed")
	}

	c.overloaded = w > c.cfg.MaxWeight
	if c.overloaded && c.overload.AllowN(now, 1) {
		c.log.WithField("weight", logic.DisplayGrams(w)).Warn("overload")
		c.play(c.cfg.Sounds.Overload, now)
	}

	if tr.EnteredZero {
		c.play(c.cfg.Sounds.Zero, now)
	}

	if tr.Report {
		if err := c.grade(now); err != nil {
			return err
		}
	}

	if c.cfg.AutoZeroEnabled && c.autoZero.Observe(w, stable, now) {
		c.runAutoZero(now)
	}

	c.deps.Tracker.Update(c.machine.State(), logic.DisplayGrams(w), stable, c.overloaded)
	if c.deps.Connection != nil {
		c.deps.Tracker.SetReportConnected(c.deps.Connection.IsConnected())
	}
	return nil
}

// grade classifies the window average at the start of a stability episode.
func (c *Controller) grade(now time.Time) error {
	weight := logic.DisplayGrams(c.window.Average())

	g, ok, err := c.classifier.Classify(weight)
	if err != nil {
		return fmt.Errorf("grade table: %w", err)
	}
	if !ok {
		c.log.WithField("weight", weight).Debug("below product minimum")
		return nil
	}

	c.log.WithFields(logrus.Fields{
		"grade":      g.Name(),
		"weight":     weight,
		"overloaded": c.overloaded,
	}).Info("graded")
	c.play(g.Band.Sound, now)
	c.deps.Tracker.RecordGrade(g.Index, weight, now)
	if c.deps.Reporter != nil {
		c.deps.Reporter.TrySubmit(report.NewEvent(g.Name(), weight, now, c.cfg.DeviceID))
	}
	return nil
}

func (c *Controller) runAutoZero(now time.Time) {
	if err := c.deps.Sensor.Tare(); err != nil {
		c.log.WithError(err).Warn("auto-zero tare failed")
		c.autoZero.Reset()
		return
	}
	c.autoZero.Done(now)
	c.window.Clear()
	c.deps.Tracker.RecordAutoZero(now)
	c.log.Info("auto-zero")
}
