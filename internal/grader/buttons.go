package grader

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/fruit-grader/internal/gpio"
)

// ServeButtons turns button presses into controller commands until ctx is
// cancelled or presses is closed.
func ServeButtons(ctx context.Context, presses <-chan gpio.Press, c *Controller, reference float64) error {
	log := logrus.WithField("component", "buttons")
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-presses:
			if !ok {
				return nil
			}
			log.WithField("button", p.Button).Info("button pressed")
			switch p.Button {
			case gpio.ButtonTare:
				if err := c.TriggerManualOffset(ctx); err != nil {
					log.WithError(err).Warn("tare from button failed")
				}
			case gpio.ButtonCalibrate:
				if _, err := c.TriggerCalibration(ctx, reference); err != nil {
					log.WithError(err).Warn("calibration from button failed")
				}
			}
		}
	}
}
