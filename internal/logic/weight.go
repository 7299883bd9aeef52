package logic

import "math"

// SnapToZero is the magnitude below which a displayed weight reads as 0 g.
const SnapToZero = 0.5

// Calibrated converts a raw sensor reading to grams.
func Calibrated(raw, factor float64) float64 {
	return raw * factor
}

// DisplayGrams rounds w to the nearest gram, snapping |w| < 0.5 g to zero.
func DisplayGrams(w float64) float64 {
	if math.Abs(w) < SnapToZero {
		return 0
	}
	return math.Round(w)
}
