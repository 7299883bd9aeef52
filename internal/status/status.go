// Package status provides a thread-safe status tracker for the fruit-grader
// daemon. The controller writes it once per tick; HTTP handlers read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/fruit-grader/internal/logic"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	DeviceID   int
	Product    string
	TickMs     int64
	ReportMode string
	ReportTo   string
	HTTPAddr   string
}

// GradeCount is the number of readings graded into one band.
type GradeCount struct {
	Name  string
	Color string
	Count int
}

// ReportCounts mirrors the dispatcher counters.
type ReportCounts struct {
	Accepted    int64
	Rejected    int64
	Unreachable int64
	Dropped     int64
}

// Reading is the most recent graded reading.
type Reading struct {
	Grade  string
	Color  string
	Weight float64
	At     time.Time
}

// Snapshot is a point-in-time view of daemon state. It is a value type and
// safe to use after the lock is released.
type Snapshot struct {
	State           logic.State
	Weight          float64
	Stable          bool
	Overloaded      bool
	Factor          float64
	SensorReady     bool
	Last            *Reading
	Grades          []GradeCount
	Reports         ReportCounts
	ReportConnected *bool
	AutoZeros       int
	LastAutoZero    time.Time
	StartTime       time.Time
	Now             time.Time
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	subs map[chan struct{}]struct{}
}

// NewTracker creates a Tracker for the given grade bands.
func NewTracker(startTime time.Time, cfg Config, bands []logic.GradeBand) *Tracker {
	grades := make([]GradeCount, len(bands))
	for i, b := range bands {
		grades[i] = GradeCount{Name: b.Name, Color: b.Color}
	}
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateReady,
			Factor:    1,
			StartTime: startTime,
			Grades:    grades,
			Config:    cfg,
		},
		subs: make(map[chan struct{}]struct{}),
	}
}

// Update sets the live measurement. Called from the control loop on every
// tick.
func (t *Tracker) Update(state logic.State, weight float64, stable, overloaded bool) {
	t.mu.Lock()
	changed := t.snap.State != state || t.snap.Weight != weight ||
		t.snap.Stable != stable || t.snap.Overloaded != overloaded
	t.snap.State = state
	t.snap.Weight = weight
	t.snap.Stable = stable
	t.snap.Overloaded = overloaded
	t.mu.Unlock()
	if changed {
		t.notify()
	}
}

// RecordGrade stores a graded reading and bumps its band counter.
func (t *Tracker) RecordGrade(index int, weight float64, at time.Time) {
	t.mu.Lock()
	if index >= 0 && index < len(t.snap.Grades) {
		g := &t.snap.Grades[index]
		g.Count++
		t.snap.Last = &Reading{Grade: g.Name, Color: g.Color, Weight: weight, At: at}
	}
	t.mu.Unlock()
	t.notify()
}

// RecordAutoZero counts an automatic re-tare.
func (t *Tracker) RecordAutoZero(at time.Time) {
	t.mu.Lock()
	t.snap.AutoZeros++
	t.snap.LastAutoZero = at
	t.mu.Unlock()
	t.notify()
}

// SetReports replaces the report counters.
func (t *Tracker) SetReports(c ReportCounts) {
	t.mu.Lock()
	t.snap.Reports = c
	t.mu.Unlock()
	t.notify()
}

// SetReportConnected records the broker connection state.
func (t *Tracker) SetReportConnected(connected bool) {
	t.mu.Lock()
	t.snap.ReportConnected = &connected
	t.mu.Unlock()
}

// SetFactor records the active calibration factor.
func (t *Tracker) SetFactor(f float64) {
	t.mu.Lock()
	t.snap.Factor = f
	t.mu.Unlock()
	t.notify()
}

// SetSensorReady records whether the load cell is delivering samples.
func (t *Tracker) SetSensorReady(ready bool) {
	t.mu.Lock()
	t.snap.SensorReady = ready
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Grades = append([]GradeCount(nil), t.snap.Grades...)
	if t.snap.Last != nil {
		last := *t.snap.Last
		s.Last = &last
	}
	if t.snap.ReportConnected != nil {
		c := *t.snap.ReportConnected
		s.ReportConnected = &c
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// Subscribe returns a channel that receives a signal whenever the snapshot
// changes. Signals coalesce; a slow reader sees one pending signal. Call the
// returned func to unsubscribe.
func (t *Tracker) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		delete(t.subs, ch)
		t.mu.Unlock()
	}
}

func (t *Tracker) notify() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
