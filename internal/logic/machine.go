package logic

import "math"

// Transition describes what a single Step did. The controller executes the
// side effects; the machine only decides them.
type Transition struct {
	From State
	To   State
	// EnteredZero is set when the machine moved into ZERO from another state.
	EnteredZero bool
	// Report is set on the first tick of a stability episode. It is latched
	// so a single episode reports exactly once.
	Report bool
	// LeftStable is set when a stability episode ended on this tick.
	LeftStable bool
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Machine classifies the live signal into READY/MEASURING/STABLE/ZERO.
type Machine struct {
	zeroThreshold float64
	// allowDirectStable lets READY/ZERO promote straight to STABLE without a
	// MEASURING tick in between.
	allowDirectStable bool

	state    State
	reported bool
}

// NewMachine returns a machine in READY.
func NewMachine(zeroThreshold float64, allowDirectStable bool) *Machine {
	return &Machine{
		zeroThreshold:     zeroThreshold,
		allowDirectStable: allowDirectStable,
		state:             StateReady,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Step advances the machine with the latest calibrated weight w and the
// stability window verdict.
func (m *Machine) Step(w float64, stable bool) Transition {
	prev := m.state
	next := m.next(w, stable)

	tr := Transition{From: prev, To: next}
	if next == StateZero && prev != StateZero {
		tr.EnteredZero = true
	}
	if prev == StateStable && next != StateStable {
		tr.LeftStable = true
		m.reported = false
	}
	if next == StateStable && prev != StateStable && !m.reported {
		tr.Report = true
		m.reported = true
	}

	m.state = next
	return tr
}

func (m *Machine) next(w float64, stable bool) State {
	if math.Abs(w) < m.zeroThreshold {
		return StateZero
	}
	if !stable {
		return StateMeasuring
	}
	switch m.state {
	case StateMeasuring, StateStable:
		return StateStable
	default:
		// READY and ZERO hold unless direct promotion is enabled.
		if m.allowDirectStable {
			return StateStable
		}
		return m.state
	}
}
