// Package loadcell provides weight sensor access with hardware abstraction.
// The real implementation bit-bangs an HX711 over the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package loadcell

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Sensor reads a load cell.
type Sensor interface {
	// ReadRaw returns the current tared reading in sensor units. Multiply by
	// the calibration factor to get grams. May block briefly.
	ReadRaw() (float64, error)

	// Tare makes the current load read as zero.
	Tare() error

	// Close releases hardware resources.
	Close() error
}

// ErrNotReady is returned when the converter does not signal data ready in time.
var ErrNotReady = errors.New("loadcell: converter not ready")

// Config describes how the HX711 is wired.
type Config struct {
	Chip          string  // e.g. "gpiochip0"
	DoutPin       int     // BCM numbering
	SckPin        int     // BCM numbering
	CountsPerUnit float64 // converter counts per sensor unit
	Average       int     // conversions averaged per reading
	ReadyTimeout  time.Duration
}

// Default pins (BCM numbering)
const (
	DefaultDoutPin = 5
	DefaultSckPin  = 6
)

// OpenFunc opens a sensor.
type OpenFunc func() (Sensor, error)

// WaitForSensor calls open until it succeeds, waiting interval between
// attempts. onAttempt, if set, is called after every failed attempt so the
// operator can be told. It only returns early if ctx is cancelled.
func WaitForSensor(ctx context.Context, open OpenFunc, interval time.Duration, onAttempt func(attempt int, err error)) (Sensor, error) {
	for attempt := 1; ; attempt++ {
		s, err := open()
		if err == nil {
			if attempt > 1 {
				logrus.WithField("attempts", attempt).Info("load cell available")
			}
			return s, nil
		}

		logrus.WithError(err).WithField("attempt", attempt).Warn("load cell unavailable, retrying")
		if onAttempt != nil {
			onAttempt(attempt, err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
