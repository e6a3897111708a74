package model

import (
	"time"

	"github.com/okian/riskdiag/internal/domain/scoring"
)

// Assessment is the persisted output of one scoring run.
type Assessment struct {
	RunID          string                    `json:"run_id"`
	Company        string                    `json:"company"`
	Ticker         string                    `json:"ticker,omitempty"`
	Profile        string                    `json:"profile"`
	AssessmentDate string                    `json:"assessment_date"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	Composite      float64                   `json:"composite_score"`
	Level          string                    `json:"risk_level"`
	Dimensions     []scoring.DimensionResult `json:"dimensions"`
	Defaulted      []string                  `json:"defaulted_factors,omitempty"`
	KeyMetrics     map[string]float64        `json:"key_metrics"`
	KeyFindings    []string                  `json:"key_findings,omitempty"`
	Benchmark      *Benchmark                `json:"competitor_benchmark,omitempty"`
	Change         *Change                   `json:"change,omitempty"`
}

// Dimension returns the named dimension result.
func (a Assessment) Dimension(name string) (scoring.DimensionResult, bool) {
	for _, d := range a.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return scoring.DimensionResult{}, false
}

// Competitor is one row of the peer comparison table.
type Competitor struct {
	Name             string  `json:"name" yaml:"name" validate:"required"`
	RevenueUSDM      float64 `json:"revenue_usd_m" yaml:"revenue_usd_m" validate:"finite"`
	RevenueGrowth    float64 `json:"revenue_growth" yaml:"revenue_growth" validate:"finite"`
	GrossMargin      float64 `json:"gross_margin" yaml:"gross_margin" validate:"finite"`
	NetMargin        float64 `json:"net_margin" yaml:"net_margin" validate:"finite"`
	MarketShare      float64 `json:"market_share" yaml:"market_share" validate:"finite"`
	InventoryDays    float64 `json:"inventory_days" yaml:"inventory_days" validate:"finite"`
	SupplyChainModel string  `json:"supply_chain_model,omitempty" yaml:"supply_chain_model"`
}

// Benchmark compares the company with its peers and the industry average.
type Benchmark struct {
	Competitors []Competitor  `json:"competitors"`
	Gaps        BenchmarkGaps `json:"company_vs_industry"`
	Position    string        `json:"competitive_position"`
}

// BenchmarkGaps are company minus industry average, rounded to one decimal.
type BenchmarkGaps struct {
	GrossMargin   float64 `json:"gross_margin_gap"`
	NetMargin     float64 `json:"net_margin_gap"`
	Growth        float64 `json:"growth_gap"`
	InventoryDays float64 `json:"inventory_days_gap"`
}

// Change describes the move against the previous recorded run.
type Change struct {
	PreviousRunID string          `json:"previous_run_id"`
	PreviousScore float64         `json:"previous_score"`
	Delta         float64         `json:"delta"`
	Descriptor    string          `json:"descriptor"`
	Alert         bool            `json:"alert"`
	Movers        []DimensionMove `json:"movers,omitempty"`
}

// DimensionMove is the change of one dimension between runs.
type DimensionMove struct {
	Name     string  `json:"name"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
}
