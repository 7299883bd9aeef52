// Package calibration holds the raw-to-grams calibration factor, its
// persistence and the reference-weight calibration procedure.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultFactor is used when no calibration has been stored.
	DefaultFactor = 1.0
	// DefaultMaxFactor is the sanity ceiling for a computed factor.
	DefaultMaxFactor = 10.0
)

var (
	// ErrFactorOutOfRange means the computed factor failed the sanity check.
	ErrFactorOutOfRange = errors.New("calibration factor out of range")
	// ErrNoSamples means no raw reading succeeded during calibration.
	ErrNoSamples = errors.New("no calibration samples")
)

// Reader is the part of a load cell the procedure needs.
type Reader interface {
	ReadRaw() (float64, error)
}

// Procedure averages raw readings with a known reference weight on the
// scale and derives a new factor.
type Procedure struct {
	Samples   int
	Interval  time.Duration
	MaxFactor float64
}

// Measure averages p.Samples raw readings, skipping failed reads.
func (p Procedure) Measure(r Reader) (float64, error) {
	n := p.Samples
	if n < 1 {
		n = 1
	}
	sum := 0.0
	good := 0
	var lastErr error
	for i := 0; i < n; i++ {
		if i > 0 && p.Interval > 0 {
			time.Sleep(p.Interval)
		}
		v, err := r.ReadRaw()
		if err != nil {
			lastErr = err
			logrus.WithError(err).WithField("sample", i).Debug("calibration read failed")
			continue
		}
		sum += v
		good++
	}
	if good == 0 {
		if lastErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrNoSamples, lastErr)
		}
		return 0, ErrNoSamples
	}
	return sum / float64(good), nil
}

// Run measures and returns the factor for reference grams.
func (p Procedure) Run(r Reader, reference float64) (factor, measured float64, err error) {
	measured, err = p.Measure(r)
	if err != nil {
		return 0, 0, err
	}
	factor, err = Factor(reference, measured, p.MaxFactor)
	return factor, measured, err
}

// Factor computes reference/measured and rejects values outside
// (0, maxFactor]. A non-positive maxFactor means DefaultMaxFactor.
func Factor(reference, measured, maxFactor float64) (float64, error) {
	if maxFactor <= 0 {
		maxFactor = DefaultMaxFactor
	}
	if measured == 0 {
		return 0, fmt.Errorf("%w: measured raw average is zero", ErrFactorOutOfRange)
	}
	f := reference / measured
	if math.IsNaN(f) || f <= 0 || f > maxFactor {
		return 0, fmt.Errorf("%w: %g (allowed (0, %g])", ErrFactorOutOfRange, f, maxFactor)
	}
	return f, nil
}
