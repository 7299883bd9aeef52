package grader

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ManualOffset tares the scale. It must run on the loop goroutine; other
// goroutines use TriggerManualOffset.
func (c *Controller) ManualOffset(now time.Time) error {
	defer c.window.Clear()
	if err := c.deps.Sensor.Tare(); err != nil {
		c.play(c.cfg.Sounds.Error, now)
		c.log.WithError(err).Error("manual tare failed")
		return fmt.Errorf("tare: %w", err)
	}
	c.autoZero.Reset()
	c.play(c.cfg.Sounds.Tare, now)
	c.log.Info("manual tare")
	return nil
}

// Calibrate measures the reference weight and, if the factor is sane,
// persists and applies it. On any failure the previous factor stays. It
// must run on the loop goroutine; other goroutines use TriggerCalibration.
func (c *Controller) Calibrate(reference float64, now time.Time) (float64, error) {
	defer c.window.Clear()
	log := c.log.WithFields(logrus.Fields{"reference": reference, "previous": c.factor})

	factor, measured, err := c.cfg.Calibration.Run(c.deps.Sensor, reference)
	if err != nil {
		c.play(c.cfg.Sounds.Error, now)
		log.WithError(err).WithField("measured", measured).Error("calibration rejected")
		return 0, fmt.Errorf("calibrate: %w", err)
	}
	if err := c.deps.Store.Save(factor); err != nil {
		c.play(c.cfg.Sounds.Error, now)
		log.WithError(err).Error("failed to save calibration")
		return 0, fmt.Errorf("save calibration: %w", err)
	}

	c.factor = factor
	c.deps.Tracker.SetFactor(factor)
	c.play(c.cfg.Sounds.Calibrated, now)
	log.WithFields(logrus.Fields{"factor": factor, "measured": measured}).Info("calibrated")
	return factor, nil
}
