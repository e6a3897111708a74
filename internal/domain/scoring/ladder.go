package scoring

import (
	"fmt"
	"math"
)

// Mode selects how a ladder compares a value against its band bounds.
type Mode string

// Ladder comparison modes.
const (
	// Below matches the first band with v < bound. Bounds must ascend.
	Below Mode = "below"
	// Above matches the first band with v > bound. Bounds must descend.
	Above Mode = "above"
	// AtLeast matches the first band with v >= bound. Bounds must descend.
	AtLeast Mode = "at_least"
)

const (
	minScore = 0
	maxScore = 100
)

// Band is one rung of a ladder. A matching band yields Score + Slope*(v-Bound).
type Band struct {
	Bound float64 `json:"bound"`
	Score float64 `json:"score"`
	Slope float64 `json:"slope,omitempty"`
}

// Ladder is an ordered list of threshold bands with a fallback score.
type Ladder struct {
	Mode  Mode    `json:"mode"`
	Bands []Band  `json:"bands"`
	Else  float64 `json:"else"`
}

// Lookup maps v through the first matching band, clipped to [0,100].
func (l Ladder) Lookup(v float64) float64 {
	for _, b := range l.Bands {
		if l.matches(v, b.Bound) {
			return Clip(b.Score + b.Slope*(v-b.Bound))
		}
	}
	return Clip(l.Else)
}

func (l Ladder) matches(v, bound float64) bool {
	switch l.Mode {
	case Below:
		return v < bound
	case Above:
		return v > bound
	case AtLeast:
		return v >= bound
	default:
		return false
	}
}

// Validate rejects unknown modes and bounds that are not strictly monotonic
// in the direction of evaluation.
func (l Ladder) Validate() error {
	switch l.Mode {
	case Below, Above, AtLeast:
	default:
		return fmt.Errorf("%w: unknown ladder mode %q", ErrInvalidModel, l.Mode)
	}
	if len(l.Bands) == 0 {
		return fmt.Errorf("%w: ladder has no bands", ErrInvalidModel)
	}
	for i, b := range l.Bands {
		if math.IsNaN(b.Bound) || math.IsNaN(b.Score) || math.IsNaN(b.Slope) {
			return fmt.Errorf("%w: band %d is NaN", ErrInvalidModel, i)
		}
		if i == 0 {
			continue
		}
		prev := l.Bands[i-1].Bound
		if l.Mode == Below && b.Bound <= prev {
			return fmt.Errorf("%w: below-ladder bound %g at %d does not ascend from %g", ErrInvalidModel, b.Bound, i, prev)
		}
		if l.Mode != Below && b.Bound >= prev {
			return fmt.Errorf("%w: %s-ladder bound %g at %d does not descend from %g", ErrInvalidModel, l.Mode, b.Bound, i, prev)
		}
	}
	return nil
}

// Linear maps v to Offset + Scale*v, clipped to [0,100].
type Linear struct {
	Offset float64 `json:"offset"`
	Scale  float64 `json:"scale"`
}

// Apply evaluates the transform.
func (t Linear) Apply(v float64) float64 {
	return Clip(t.Offset + t.Scale*v)
}

// Clip bounds a score to [0,100]. NaN clips to 0.
func Clip(v float64) float64 {
	if math.IsNaN(v) {
		return minScore
	}
	return math.Max(minScore, math.Min(maxScore, v))
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
