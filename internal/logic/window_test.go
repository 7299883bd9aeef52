package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestWindowEmpty(t *testing.T) {
	w := NewWindow(5, 1.0)
	assert.False(t, w.IsStable())
	assert.Equal(t, 0.0, w.Average())
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Full())
}

func TestWindowSingleSampleNotStable(t *testing.T) {
	w := NewWindow(5, 1.0)
	w.Add(100)
	assert.False(t, w.IsStable(), "one sample is never stable")
	assert.Equal(t, 100.0, w.Average())
}

func TestWindowTwoSamplesStable(t *testing.T) {
	w := NewWindow(5, 1.0)
	w.Add(100)
	w.Add(100.8)
	assert.True(t, w.IsStable())
	assert.InDelta(t, 100.4, w.Average(), 1e-9)
}

func TestWindowThresholdInclusive(t *testing.T) {
	w := NewWindow(3, 2.0)
	w.Add(10)
	w.Add(12)
	assert.True(t, w.IsStable(), "spread equal to threshold is stable")
	w.Add(12.5)
	assert.False(t, w.IsStable())
}

func TestWindowWrapsAndSetsFull(t *testing.T) {
	w := NewWindow(3, 1.0)
	w.Add(1)
	w.Add(2)
	assert.False(t, w.Full())
	w.Add(3)
	assert.True(t, w.Full())
	w.Add(4)
	assert.Equal(t, []float64{2, 3, 4}, w.Values())
	assert.Equal(t, 3, w.Len())
	assert.InDelta(t, 3.0, w.Average(), 1e-9)
}

func TestWindowOutlierUntilOverwritten(t *testing.T) {
	w := NewWindow(5, 2.0)
	for i := 0; i < 5; i++ {
		w.Add(150)
	}
	require.True(t, w.IsStable())

	w.Add(160)
	for i := 0; i < 4; i++ {
		assert.False(t, w.IsStable(), "outlier still held after %d clean samples", i)
		w.Add(150)
	}
	assert.True(t, w.IsStable(), "outlier overwritten")
}

func TestWindowClear(t *testing.T) {
	w := NewWindow(3, 1.0)
	for i := 0; i < 4; i++ {
		w.Add(50)
	}
	w.Clear()
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Full())
	assert.False(t, w.IsStable())
	assert.Equal(t, 0.0, w.Average())

	w.Add(7)
	assert.Equal(t, []float64{7}, w.Values())
}

func TestWindowStableRunProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(2, 12).Draw(t, "capacity")
		threshold := rapid.Float64Range(0.1, 5).Draw(t, "threshold")
		base := rapid.Float64Range(-10, 500).Draw(t, "base")
		n := rapid.IntRange(capacity, capacity*3).Draw(t, "n")

		w := NewWindow(capacity, threshold)
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = base + rapid.Float64Range(0, threshold*0.99).Draw(t, "offset")
			w.Add(samples[i])
		}

		if !w.IsStable() {
			t.Fatalf("samples within %g of each other reported unstable: %v", threshold, w.Values())
		}
		sum := 0.0
		for _, s := range samples[n-capacity:] {
			sum += s
		}
		want := sum / float64(capacity)
		if diff := w.Average() - want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("average: got %v, want %v", w.Average(), want)
		}
	})
}

func TestWindowOutlierProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(2, 10).Draw(t, "capacity")
		threshold := rapid.Float64Range(0.1, 5).Draw(t, "threshold")
		base := rapid.Float64Range(0, 500).Draw(t, "base")
		excess := rapid.Float64Range(0.01, 100).Draw(t, "excess")

		w := NewWindow(capacity, threshold)
		for i := 0; i < capacity; i++ {
			w.Add(base)
		}
		w.Add(base + threshold + excess)
		for i := 0; i < capacity-1; i++ {
			if w.IsStable() {
				t.Fatalf("stable with outlier held (clean=%d)", i)
			}
			w.Add(base)
		}
		if w.IsStable() {
			t.Fatalf("stable with outlier as oldest sample")
		}
		w.Add(base)
		if !w.IsStable() {
			t.Fatalf("not stable after outlier overwritten")
		}
	})
}
