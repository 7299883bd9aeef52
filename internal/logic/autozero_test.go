package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var azStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testAutoZero() *AutoZero {
	return NewAutoZero(AutoZeroConfig{
		Threshold:   1.2,
		Hold:        3 * time.Second,
		MinInterval: 5 * time.Minute,
	})
}

// feed runs n qualifying ticks starting at from and returns how many asked
// for a tare, calling Done for each.
func feed(a *AutoZero, from time.Time, tick time.Duration, n int) (fired int, end time.Time) {
	now := from
	for i := 0; i < n; i++ {
		if a.Observe(0.4, true, now) {
			fired++
			a.Done(now)
		}
		now = now.Add(tick)
	}
	return fired, now
}

func TestAutoZeroHoldBoundary(t *testing.T) {
	const tick = 100 * time.Millisecond
	a := testAutoZero()

	// Ticks at 0..2.9s: the hold is not complete yet.
	ticksBeforeHold := int(3*time.Second/tick) - 1
	fired, next := feed(a, azStart, tick, ticksBeforeHold+1)
	assert.Equal(t, 0, fired, "hold minus one tick must not tare")
	assert.True(t, a.Candidate())

	// The tick at exactly 3s completes the hold.
	fired, _ = feed(a, next, tick, 1)
	assert.Equal(t, 1, fired)
	assert.Equal(t, next, a.Last())
}

func TestAutoZeroMinInterval(t *testing.T) {
	const tick = 100 * time.Millisecond
	a := testAutoZero()

	fired, next := feed(a, azStart, tick, 31)
	assert.Equal(t, 1, fired)

	// A second full qualifying run well inside five minutes.
	fired, _ = feed(a, next, tick, 100)
	assert.Equal(t, 0, fired)

	// Past the interval the still-running hold fires once more.
	fired, _ = feed(a, azStart.Add(5*time.Minute+10*time.Second), tick, 31)
	assert.Equal(t, 1, fired)
}

func TestAutoZeroHoldMustBeContiguous(t *testing.T) {
	a := testAutoZero()
	now := azStart

	for i := 0; i < 20; i++ {
		assert.False(t, a.Observe(0.2, true, now))
		now = now.Add(100 * time.Millisecond)
	}
	// One unstable tick breaks the hold.
	assert.False(t, a.Observe(0.2, false, now))
	assert.False(t, a.Candidate())
	now = now.Add(100 * time.Millisecond)

	// 2.9 s more is not enough after the reset.
	restart := now
	for now.Sub(restart) < 3*time.Second {
		assert.False(t, a.Observe(0.2, true, now), "fired %v after restart", now.Sub(restart))
		now = now.Add(100 * time.Millisecond)
	}
	assert.True(t, a.Observe(0.2, true, now))
}

func TestAutoZeroThreshold(t *testing.T) {
	a := testAutoZero()
	now := azStart
	for i := 0; i < 100; i++ {
		assert.False(t, a.Observe(1.2, true, now), "threshold is exclusive")
		assert.False(t, a.Observe(-1.5, true, now))
		now = now.Add(100 * time.Millisecond)
	}
	assert.False(t, a.Candidate())
}

func TestAutoZeroResetKeepsInterval(t *testing.T) {
	a := testAutoZero()
	a.Done(azStart)
	a.Reset()
	assert.Equal(t, azStart, a.Last())
	fired, _ := feed(a, azStart.Add(time.Second), 100*time.Millisecond, 60)
	assert.Equal(t, 0, fired)
}
