package scoring

import (
	"fmt"
	"math"
)

// WeightTolerance is the allowed deviation of a weight sum from 1.
const WeightTolerance = 1e-6

// Risk level names.
const (
	LevelExtreme = "extreme"
	LevelHigh    = "high"
	LevelMedium  = "medium"
	LevelLow     = "low"
	LevelVeryLow = "very_low"
)

// Level is a named lower bound; a score s belongs to the first level with s >= Min.
type Level struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
}

// DefaultLevels partitions [0,100] into five labels with inclusive lower bounds.
var DefaultLevels = []Level{
	{Name: LevelExtreme, Min: 85},
	{Name: LevelHigh, Min: 70},
	{Name: LevelMedium, Min: 50},
	{Name: LevelLow, Min: 30},
	{Name: LevelVeryLow, Min: 0},
}

// Factor scores one metric. With neither Ladder nor Linear set the metric is
// taken as an already-normalized 0-100 score.
type Factor struct {
	Name    string  `json:"name"`
	Metric  string  `json:"metric"`
	Weight  float64 `json:"weight"`
	Ladder  *Ladder `json:"ladder,omitempty"`
	Linear  *Linear `json:"linear,omitempty"`
	Default float64 `json:"default"`
}

// Score maps v through the factor's transform.
func (f Factor) Score(v float64) float64 {
	switch {
	case f.Ladder != nil:
		return f.Ladder.Lookup(v)
	case f.Linear != nil:
		return f.Linear.Apply(v)
	default:
		return Clip(v)
	}
}

// DimensionSpec groups weighted factors under one top-level weight.
type DimensionSpec struct {
	Name    string   `json:"name"`
	Weight  float64  `json:"weight"`
	Factors []Factor `json:"factors"`
}

// Model is a named scoring profile.
type Model struct {
	Profile    string          `json:"profile"`
	Dimensions []DimensionSpec `json:"dimensions"`
	Levels     []Level         `json:"levels"`
}

// Validate checks weight sums, ladders, defaults and level bands.
func (m Model) Validate() error {
	if len(m.Dimensions) == 0 {
		return fmt.Errorf("%w: profile %q has no dimensions", ErrInvalidModel, m.Profile)
	}
	top := 0.0
	seen := make(map[string]bool, len(m.Dimensions))
	for _, d := range m.Dimensions {
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate dimension %q", ErrInvalidModel, d.Name)
		}
		seen[d.Name] = true
		if d.Weight < 0 {
			return fmt.Errorf("%w: dimension %q has negative weight", ErrInvalidModel, d.Name)
		}
		top += d.Weight
		if err := d.validate(); err != nil {
			return err
		}
	}
	if !(math.Abs(top-1) <= WeightTolerance) {
		return fmt.Errorf("%w: dimension weights sum to %.6f", ErrInvalidModel, top)
	}
	return validateLevels(m.Levels)
}

func (d DimensionSpec) validate() error {
	if len(d.Factors) == 0 {
		return fmt.Errorf("%w: dimension %q has no factors", ErrInvalidModel, d.Name)
	}
	sum := 0.0
	for _, f := range d.Factors {
		if f.Weight < 0 {
			return fmt.Errorf("%w: factor %s.%s has negative weight", ErrInvalidModel, d.Name, f.Name)
		}
		if f.Default < minScore || f.Default > maxScore {
			return fmt.Errorf("%w: factor %s.%s default %g outside [0,100]", ErrInvalidModel, d.Name, f.Name, f.Default)
		}
		if f.Ladder != nil && f.Linear != nil {
			return fmt.Errorf("%w: factor %s.%s has both ladder and linear", ErrInvalidModel, d.Name, f.Name)
		}
		if f.Ladder != nil {
			if err := f.Ladder.Validate(); err != nil {
				return fmt.Errorf("factor %s.%s: %w", d.Name, f.Name, err)
			}
		}
		sum += f.Weight
	}
	if !(math.Abs(sum-1) <= WeightTolerance) {
		return fmt.Errorf("%w: dimension %q factor weights sum to %.6f", ErrInvalidModel, d.Name, sum)
	}
	return nil
}

func validateLevels(levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("%w: no risk levels", ErrInvalidModel)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].Min >= levels[i-1].Min {
			return fmt.Errorf("%w: level %q bound %g does not descend", ErrInvalidModel, levels[i].Name, levels[i].Min)
		}
	}
	if last := levels[len(levels)-1]; last.Min > minScore {
		return fmt.Errorf("%w: lowest level %q leaves [0,%g) unlabelled", ErrInvalidModel, last.Name, last.Min)
	}
	return nil
}

// Classify returns the label for score.
func (m Model) Classify(score float64) string {
	return classify(m.Levels, score)
}

// Classify labels score against DefaultLevels.
func Classify(score float64) string {
	return classify(DefaultLevels, score)
}

func classify(levels []Level, score float64) string {
	for _, l := range levels {
		if score >= l.Min {
			return l.Name
		}
	}
	return levels[len(levels)-1].Name
}

// WithDimensionWeights returns a copy of m with top-level weights replaced.
// Names not present in the model are rejected and the result is validated.
func (m Model) WithDimensionWeights(weights map[string]float64) (Model, error) {
	out := m.clone()
	if len(weights) == 0 {
		return out, nil
	}
	index := make(map[string]int, len(out.Dimensions))
	for i, d := range out.Dimensions {
		index[d.Name] = i
	}
	for name, w := range weights {
		i, ok := index[name]
		if !ok {
			return Model{}, fmt.Errorf("%w: %q in profile %q", ErrUnknownDimension, name, m.Profile)
		}
		out.Dimensions[i].Weight = w
	}
	if err := out.Validate(); err != nil {
		return Model{}, err
	}
	return out, nil
}

func (m Model) clone() Model {
	out := Model{Profile: m.Profile, Levels: append([]Level(nil), m.Levels...)}
	out.Dimensions = make([]DimensionSpec, len(m.Dimensions))
	for i, d := range m.Dimensions {
		d.Factors = append([]Factor(nil), d.Factors...)
		out.Dimensions[i] = d
	}
	return out
}
