// Package logic contains the pure measurement logic of the grader: the
// stability window, the measurement state machine, the auto-zero policy and
// the grade classifier.
// This package has NO external dependencies (no GPIO, audio, network, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "math"

// State is the measurement state shown to the operator.
type State string

const (
	StateReady     State = "READY"
	StateMeasuring State = "MEASURING"
	StateStable    State = "STABLE"
	StateZero      State = "ZERO"
)

// Unbounded is the Max of the topmost grade band.
var Unbounded = math.Inf(1)

// GradeBand is a named, closed weight interval.
type GradeBand struct {
	Name  string
	Min   float64
	Max   float64
	Sound string
	Color string
}

// Contains reports whether w lies in [Min, Max].
func (b GradeBand) Contains(w float64) bool {
	return w >= b.Min && w <= b.Max
}

// Grade is the result of a successful classification. Index points into the
// classifier's ordered band list.
type Grade struct {
	Index int
	Band  GradeBand
}

// Name returns the band name.
func (g Grade) Name() string {
	return g.Band.Name
}
