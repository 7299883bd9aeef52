package logic

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoBand means a weight at or above the product minimum matched no band.
// Under a gap-free band table this cannot happen, so callers treat it as a
// configuration defect.
var ErrNoBand = errors.New("no band")

// Classifier maps a stable weight to a grade band.
type Classifier struct {
	minWeight float64
	bands     []GradeBand
}

// NewClassifier returns a classifier over bands, which must be ordered,
// contiguous and non-overlapping. The classifier does not re-check that.
func NewClassifier(minWeight float64, bands []GradeBand) *Classifier {
	return &Classifier{
		minWeight: minWeight,
		bands:     append([]GradeBand(nil), bands...),
	}
}

// Classify returns the first band containing weight. ok is false, with a
// nil error, when weight is below the product minimum.
func (c *Classifier) Classify(weight float64) (g Grade, ok bool, err error) {
	if weight < c.minWeight {
		return Grade{}, false, nil
	}
	for i, b := range c.bands {
		if b.Contains(weight) {
			return Grade{Index: i, Band: b}, true, nil
		}
	}
	return Grade{}, false, fmt.Errorf("classify %.1f g: %w", weight, ErrNoBand)
}

// Band returns the band at index i.
func (c *Classifier) Band(i int) GradeBand {
	return c.bands[i]
}

// Bands returns a copy of the ordered band list.
func (c *Classifier) Bands() []GradeBand {
	return append([]GradeBand(nil), c.bands...)
}

// Resolution is the step of the weights fed to Classify (whole grams).
// Adjacent bands must leave no such step between them uncovered.
const Resolution = 1.0

// ValidateBands checks that bands cover [minWeight, +Inf) without gaps or
// overlaps at gram resolution.
func ValidateBands(minWeight float64, bands []GradeBand) error {
	if len(bands) == 0 {
		return errors.New("no grade bands")
	}
	if bands[0].Min > minWeight {
		return fmt.Errorf("band %q starts at %g, above the product minimum %g", bands[0].Name, bands[0].Min, minWeight)
	}
	seen := make(map[string]bool, len(bands))
	for i, b := range bands {
		if b.Name == "" {
			return fmt.Errorf("band %d has no name", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate band %q", b.Name)
		}
		seen[b.Name] = true
		if b.Min > b.Max {
			return fmt.Errorf("band %q: min %g above max %g", b.Name, b.Min, b.Max)
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1]
		if b.Min <= prev.Max {
			return fmt.Errorf("band %q overlaps %q", b.Name, prev.Name)
		}
		// The first whole gram past prev must fall inside b.
		if math.Floor(prev.Max)+Resolution < math.Ceil(b.Min) {
			return fmt.Errorf("gap between %q (max %g) and %q (min %g)", prev.Name, prev.Max, b.Name, b.Min)
		}
	}
	if last := bands[len(bands)-1]; last.Max != Unbounded {
		return fmt.Errorf("top band %q must be unbounded, has max %g", last.Name, last.Max)
	}
	return nil
}
