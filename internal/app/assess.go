package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/riskdiag/internal/domain/facts"
	"github.com/okian/riskdiag/internal/domain/model"
	"github.com/okian/riskdiag/internal/domain/scoring"
)

// Competitive positions, from the number of benchmark gaps against the company.
const (
	PositionAdvantaged   = "advantaged"
	PositionMixed        = "mixed"
	PositionDisadvantage = "disadvantaged"
	PositionSevere       = "severely_disadvantaged"
)

// Subject identifies the assessed company.
type Subject struct {
	Company string
	Ticker  string
}

// NewAssessment wraps a scoring result with run metadata, the metrics it was
// computed from, the curated findings and the peer benchmark.
func NewAssessment(sub Subject, res scoring.Result, m scoring.Metrics, f *facts.Facts, at time.Time) model.Assessment {
	a := model.Assessment{
		RunID:          uuid.NewString(),
		Company:        sub.Company,
		Ticker:         sub.Ticker,
		Profile:        res.Profile,
		AssessmentDate: at.Format(model.DateLayout),
		GeneratedAt:    at,
		Composite:      res.Composite,
		Level:          res.Level,
		Dimensions:     res.Dimensions,
		Defaulted:      res.Defaulted(),
		KeyMetrics:     make(map[string]float64, len(m)),
	}
	// non-finite values were scored as defaults and cannot be encoded
	for k, v := range m {
		if finite(v) {
			a.KeyMetrics[k] = v
		}
	}
	if f != nil {
		a.KeyFindings = append(a.KeyFindings, f.KeyFindings...)
		a.Benchmark = NewBenchmark(f, sub.Company)
	}
	for _, d := range res.Dimensions {
		if d.Level == scoring.LevelExtreme || d.Level == scoring.LevelHigh {
			a.KeyFindings = append(a.KeyFindings, fmt.Sprintf("%s risk is %s (%.1f)", d.Name, d.Level, d.Total))
		}
	}
	return a
}

// NewBenchmark compares the company's row of the competitor table with the
// industry average. It returns nil when either is missing.
func NewBenchmark(f *facts.Facts, company string) *model.Benchmark {
	if f == nil || f.IndustryAverage == nil {
		return nil
	}
	self, ok := f.Competitor(company)
	if !ok {
		return nil
	}
	avg := f.IndustryAverage
	gaps := model.BenchmarkGaps{
		GrossMargin:   scoring.Round1(self.GrossMargin - avg.GrossMargin),
		NetMargin:     scoring.Round1(self.NetMargin - avg.NetMargin),
		Growth:        scoring.Round1(self.RevenueGrowth - avg.RevenueGrowth),
		InventoryDays: scoring.Round1(self.InventoryDays - avg.InventoryDays),
	}
	return &model.Benchmark{
		Competitors: append([]model.Competitor(nil), f.Competitors...),
		Gaps:        gaps,
		Position:    Position(gaps),
	}
}

// Position grades the gaps. Lower margins or growth and higher inventory days count against.
func Position(g model.BenchmarkGaps) string {
	against := 0
	for _, behind := range []bool{g.GrossMargin < 0, g.NetMargin < 0, g.Growth < 0, g.InventoryDays > 0} {
		if behind {
			against++
		}
	}
	switch {
	case against == 4:
		return PositionSevere
	case against == 3:
		return PositionDisadvantage
	case against == 2:
		return PositionMixed
	default:
		return PositionAdvantaged
	}
}
