package logic

// Window is a fixed-capacity ring of the most recent weight samples.
// Not safe for concurrent use; the controller loop owns it.
type Window struct {
	buf       []float64
	threshold float64
	head      int // next write position
	count     int
	full      bool
}

// NewWindow returns an empty window holding up to capacity samples. The
// signal is stable when max-min of the held samples is within threshold.
func NewWindow(capacity int, threshold float64) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		buf:       make([]float64, capacity),
		threshold: threshold,
	}
}

// Add overwrites the oldest slot with sample.
func (w *Window) Add(sample float64) {
	w.buf[w.head] = sample
	w.head = (w.head + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
	if w.head == 0 {
		w.full = true
	}
}

// IsStable reports whether the spread of the held samples is within the
// threshold. Fewer than 2 samples is never stable.
func (w *Window) IsStable() bool {
	if w.count < 2 {
		return false
	}
	lo, hi := w.buf[0], w.buf[0]
	for _, v := range w.buf[1:w.count] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi-lo <= w.threshold
}

// Average returns the mean of the held samples, or 0 when empty.
func (w *Window) Average() float64 {
	if w.count == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range w.buf[:w.count] {
		sum += v
	}
	return sum / float64(w.count)
}

// Values returns the held samples, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	start := (w.head - w.count + len(w.buf)) % len(w.buf)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(start+i)%len(w.buf)]
	}
	return out
}

// Clear drops all samples.
func (w *Window) Clear() {
	w.head = 0
	w.count = 0
	w.full = false
}

// Len returns the number of held samples.
func (w *Window) Len() int {
	return w.count
}

// Full reports whether the write index has wrapped at least once.
func (w *Window) Full() bool {
	return w.full
}

// Capacity returns the window size.
func (w *Window) Capacity() int {
	return len(w.buf)
}
