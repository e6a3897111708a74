// Package scoring turns named metrics into weighted, labelled risk scores.
package scoring

import (
	"context"
	"fmt"
	"math"
)

// Metrics holds raw metric values keyed by metric name.
type Metrics map[string]float64

// FactorScore is one evaluated factor.
type FactorScore struct {
	Name         string   `json:"name"`
	Metric       string   `json:"metric"`
	Value        *float64 `json:"value,omitempty"`
	Score        float64  `json:"score"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
	Defaulted    bool     `json:"defaulted,omitempty"`
}

// DimensionResult is one evaluated dimension.
type DimensionResult struct {
	Name      string        `json:"name"`
	Weight    float64       `json:"weight"`
	Total     float64       `json:"score"`
	Level     string        `json:"level"`
	Factors   []FactorScore `json:"sub_scores"`
	Defaulted []string      `json:"defaulted,omitempty"`
}

// Result is a full evaluation of a model.
type Result struct {
	Profile    string            `json:"profile"`
	Dimensions []DimensionResult `json:"dimensions"`
	Composite  float64           `json:"composite_score"`
	Level      string            `json:"risk_level"`
}

// Defaulted lists every factor that fell back to its default, as dimension.factor.
func (r Result) Defaulted() []string {
	var out []string
	for _, d := range r.Dimensions {
		for _, f := range d.Defaulted {
			out = append(out, d.Name+"."+f)
		}
	}
	return out
}

// Evaluate scores metrics against m. A metric that is absent, NaN or infinite
// yields the factor's default score and the factor is listed as defaulted.
// Dimension totals and the composite are rounded to one decimal before they
// are classified. Neither m nor metrics is modified.
func Evaluate(m Model, metrics Metrics) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{Profile: m.Profile, Dimensions: make([]DimensionResult, 0, len(m.Dimensions))}
	composite := 0.0
	for _, spec := range m.Dimensions {
		dim := DimensionResult{
			Name:    spec.Name,
			Weight:  spec.Weight,
			Factors: make([]FactorScore, 0, len(spec.Factors)),
		}
		total := 0.0
		for _, f := range spec.Factors {
			fs := FactorScore{Name: f.Name, Metric: f.Metric, Weight: f.Weight}
			v, ok := metrics[f.Metric]
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				fs.Score = f.Default
				fs.Defaulted = true
				dim.Defaulted = append(dim.Defaulted, f.Name)
			} else {
				value := v
				fs.Value = &value
				fs.Score = f.Score(v)
			}
			fs.Contribution = fs.Score * f.Weight
			total += fs.Contribution
			dim.Factors = append(dim.Factors, fs)
		}
		dim.Total = Round1(Clip(total))
		dim.Level = m.Classify(dim.Total)
		composite += dim.Total * spec.Weight
		res.Dimensions = append(res.Dimensions, dim)
	}
	res.Composite = Round1(Clip(composite))
	res.Level = m.Classify(res.Composite)
	return res, nil
}

// Scorer computes an assessment from metrics.
type Scorer interface {
	// Score evaluates metrics, honoring ctx for cancellation.
	Score(ctx context.Context, metrics Metrics) (Result, error)
}

// Option applies a configuration option to the ModelScorer.
type Option func(*ModelScorer)

// WithDimensionWeights overrides the profile's top-level weights.
func WithDimensionWeights(weights map[string]float64) Option {
	return func(s *ModelScorer) {
		if len(weights) == 0 {
			return
		}
		s.weights = make(map[string]float64, len(weights))
		for name, w := range weights {
			s.weights[name] = w
		}
	}
}

// ModelScorer implements Scorer over a fixed profile.
type ModelScorer struct {
	model   Model
	weights map[string]float64
}

// NewModelScorer returns a scorer for the named profile.
func NewModelScorer(profile string, opts ...Option) (*ModelScorer, error) {
	m, err := Profile(profile)
	if err != nil {
		return nil, err
	}
	s := &ModelScorer{}
	for _, opt := range opts {
		opt(s)
	}
	if s.model, err = m.WithDimensionWeights(s.weights); err != nil {
		return nil, err
	}
	return s, nil
}

// Model returns the effective model after overrides.
func (s *ModelScorer) Model() Model {
	return s.model.clone()
}

// Score evaluates metrics against the effective model.
func (s *ModelScorer) Score(ctx context.Context, metrics Metrics) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	return Evaluate(s.model, metrics)
}
