package logic

import (
	"math"
	"time"
)

// AutoZeroConfig holds the auto-zero policy parameters.
type AutoZeroConfig struct {
	// Threshold is the |weight| below which the scale counts as empty.
	Threshold float64
	// Hold is how long the empty+stable condition must hold contiguously.
	Hold time.Duration
	// MinInterval is the minimum time between two executed auto-zeros.
	MinInterval time.Duration
}

// AutoZero decides when the sensor should be re-tared unattended.
type AutoZero struct {
	cfg AutoZeroConfig

	candidate    bool
	stableSince  time.Time
	lastAutoZero time.Time // zero means never
}

// NewAutoZero returns an auto-zero policy that has never fired.
func NewAutoZero(cfg AutoZeroConfig) *AutoZero {
	return &AutoZero{cfg: cfg}
}

// Observe feeds one tick and reports whether a tare is due now. The caller
// must call Done after a successful tare.
func (a *AutoZero) Observe(w float64, stable bool, now time.Time) bool {
	if math.Abs(w) >= a.cfg.Threshold || !stable {
		a.candidate = false
		return false
	}
	if !a.candidate {
		a.candidate = true
		a.stableSince = now
	}
	if now.Sub(a.stableSince) < a.cfg.Hold {
		return false
	}
	if !a.lastAutoZero.IsZero() && now.Sub(a.lastAutoZero) < a.cfg.MinInterval {
		return false
	}
	return true
}

// Done records an executed tare at now and restarts the hold timer.
func (a *AutoZero) Done(now time.Time) {
	a.lastAutoZero = now
	a.candidate = false
}

// Reset drops the current candidate without touching the interval timer.
func (a *AutoZero) Reset() {
	a.candidate = false
}

// Candidate reports whether the hold timer is running.
func (a *AutoZero) Candidate() bool {
	return a.candidate
}

// Last returns the time of the last executed auto-zero.
func (a *AutoZero) Last() time.Time {
	return a.lastAutoZero
}
