// Package facts loads the hand-curated inputs that no public API provides.
package facts

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/okian/riskdiag/internal/domain/model"
)

// Sentinel errors for facts loading.
var (
	ErrNotFound     = errors.New("facts file not found")
	ErrInvalidFacts = errors.New("invalid facts")
)

// Facts is the curated fact sheet for one company. Pointer fields are
// optional; an unset field leaves the matching metric to its default score.
type Facts struct {
	Company         string                 `yaml:"company"`
	Financial       Financial              `yaml:"financial"`
	Operations      Operations             `yaml:"operations"`
	SupplyChain     SupplyChain            `yaml:"supply_chain"`
	Competitors     []model.Competitor     `yaml:"competitors" validate:"dive"`
	IndustryAverage *IndustryAverage       `yaml:"industry_average"`
	KeyFindings     []string               `yaml:"key_findings"`
	Events          []Event                `yaml:"events" validate:"dive"`
	News            *model.NewsSnapshot    `yaml:"news"`
	Reviews         *model.ReviewSnapshot  `yaml:"reviews"`
	Shipments       *model.ShipmentProfile `yaml:"shipments"`
}

// Financial holds the latest reported figures.
type Financial struct {
	RevenueYoYPct  *float64 `yaml:"revenue_yoy_pct" validate:"omitempty,finite"`
	GAAPEPS        *float64 `yaml:"gaap_eps" validate:"omitempty,finite"`
	CashUSDM       *float64 `yaml:"cash_usd_m" validate:"omitempty,finite,gte=0"`
	DebtUSDM       *float64 `yaml:"debt_usd_m" validate:"omitempty,finite,gte=0"`
	GrossMarginPct *float64 `yaml:"gross_margin_pct" validate:"omitempty,finite,gte=-100,lte=100"`
	GoingConcern   *bool    `yaml:"going_concern"`
}

// Operations holds analyst-scored operating signals. Scores are 0-100.
type Operations struct {
	ManagementChange    *float64 `yaml:"management_change" validate:"omitempty,finite,gte=0,lte=100"`
	HeadcountBefore     *int     `yaml:"headcount_before" validate:"omitempty,gt=0"`
	HeadcountAfter      *int     `yaml:"headcount_after" validate:"omitempty,gte=0"`
	Competition         *float64 `yaml:"competition" validate:"omitempty,finite,gte=0,lte=100"`
	Regulatory          *float64 `yaml:"regulatory" validate:"omitempty,finite,gte=0,lte=100"`
	Lawsuit             *bool    `yaml:"lawsuit"`
	ManagementStability *float64 `yaml:"management_stability" validate:"omitempty,finite,gte=0,lte=1"`
	FundingGapMonths    *float64 `yaml:"funding_gap_months" validate:"omitempty,finite,gte=0"`
	TotalRaisedUSDM     *float64 `yaml:"total_raised_usd_m" validate:"omitempty,finite,gte=0"`
}

// SupplyChain holds sourcing facts. Scores are 0-100.
type SupplyChain struct {
	SupplierSharesPct  []float64 `yaml:"supplier_shares_pct" validate:"dive,finite,gte=0,lte=100"`
	ChinaDependencyPct *float64  `yaml:"china_dependency_pct" validate:"omitempty,finite,gte=0,lte=100"`
	TariffExposure     *float64  `yaml:"tariff_exposure" validate:"omitempty,finite,gte=0,lte=100"`
	InventoryDays      *float64  `yaml:"inventory_days" validate:"omitempty,finite,gte=0"`
	QualityControl     *float64  `yaml:"quality_control" validate:"omitempty,finite,gte=0,lte=100"`
}

// IndustryAverage is the peer average used for benchmark gaps.
type IndustryAverage struct {
	GrossMargin   float64 `yaml:"gross_margin" validate:"finite"`
	NetMargin     float64 `yaml:"net_margin" validate:"finite"`
	RevenueGrowth float64 `yaml:"revenue_growth" validate:"finite"`
	InventoryDays float64 `yaml:"inventory_days" validate:"finite"`
}

// Event annotates the price chart.
type Event struct {
	Date  string `yaml:"date" validate:"required,datetime=2006-01-02"`
	Label string `yaml:"label" validate:"required"`
}

var validate = newValidator()

// newValidator registers "finite", which rejects NaN and infinite floats.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float32, reflect.Float64:
			return !math.IsNaN(f.Float()) && !math.IsInf(f.Float(), 0)
		default:
			return true
		}
	})
	return v
}

// Load reads and validates the facts file at path.
func Load(path string) (*Facts, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read facts %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates a facts document.
func Parse(b []byte) (*Facts, error) {
	var f Facts
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFacts, err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFacts, err)
	}
	return &f, nil
}

// Competitor returns the competitor row with the given name.
func (f *Facts) Competitor(name string) (model.Competitor, bool) {
	for _, c := range f.Competitors {
		if c.Name == name {
			return c, true
		}
	}
	return model.Competitor{}, false
}
