package scoring

import "fmt"

// Profile names.
const (
	ProfilePublic  = "public"
	ProfilePrivate = "private"
)

// Metric keys produced by the input loaders.
const (
	MetricRevenueYoY         = "revenue_yoy_pct"
	MetricGAAPEPS            = "gaap_eps"
	MetricCashDebtRatio      = "cash_debt_ratio"
	MetricGrossMargin        = "gross_margin_pct"
	MetricGoingConcern       = "going_concern"
	MetricPriceChange        = "price_change_pct"
	MetricVolatility         = "volatility_pct"
	MetricLatestClose        = "latest_close"
	MetricVolumeChange       = "volume_change_pct"
	MetricSentiment          = "sentiment_score"
	MetricNegativeRatio      = "negative_event_ratio"
	MetricExtremeEvents      = "extreme_event_count"
	MetricMediaAttention     = "media_attention"
	MetricManagementChange   = "management_change"
	MetricWorkforceReduction = "workforce_reduction_pct"
	MetricEmployeeRating     = "employee_rating"
	MetricCompetition        = "competition"
	MetricRegulatory         = "regulatory"
	MetricSupplierHHI        = "supplier_hhi"
	MetricChinaDependency    = "china_dependency_pct"
	MetricTariffExposure     = "tariff_exposure"
	MetricInventoryDays      = "inventory_days"
	MetricGSCPI              = "gscpi_latest"
	MetricQualityControl     = "quality_control"
	MetricFundingGap         = "funding_gap_months"
	MetricShipmentTrend      = "shipment_trend"
	MetricIdleMonths         = "idle_months"
	MetricLawsuit            = "lawsuit"
	MetricManagementStable   = "management_stability"
	// MetricConsecutiveLosses is reported in key metrics only; no profile scores it.
	MetricConsecutiveLosses  = "consecutive_loss_years"
)

// employee ratings are on a 1-5 scale; 5 maps to 0 risk and 1 maps to 100.
var employeeRatingRisk = &Linear{Offset: 125, Scale: -25}

// Profile returns a fresh copy of the named model.
func Profile(name string) (Model, error) {
	switch name {
	case ProfilePublic:
		return PublicModel(), nil
	case ProfilePrivate:
		return PrivateModel(), nil
	default:
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// PublicModel scores a listed company across five dimensions.
func PublicModel() Model {
	return Model{
		Profile: ProfilePublic,
		Levels:  append([]Level(nil), DefaultLevels...),
		Dimensions: []DimensionSpec{
			{
				Name:   "financial",
				Weight: 0.25,
				Factors: []Factor{
					{Name: "revenue_trend", Metric: MetricRevenueYoY, Weight: 0.20, Default: 70, Ladder: &Ladder{
						Mode: Below, Else: 20,
						Bands: []Band{{Bound: -30, Score: 95}, {Bound: -20, Score: 85}, {Bound: -10, Score: 70}, {Bound: 0, Score: 50}},
					}},
					{Name: "profitability", Metric: MetricGAAPEPS, Weight: 0.20, Default: 75, Ladder: &Ladder{
						Mode: Below, Else: 20,
						Bands: []Band{{Bound: -0.5, Score: 90}, {Bound: -0.2, Score: 75}, {Bound: 0, Score: 55}},
					}},
					{Name: "liquidity", Metric: MetricCashDebtRatio, Weight: 0.25, Default: 85, Ladder: &Ladder{
						Mode: Below, Else: 30,
						Bands: []Band{{Bound: 0.15, Score: 98}, {Bound: 0.3, Score: 85}, {Bound: 0.5, Score: 65}},
					}},
					{Name: "gross_margin", Metric: MetricGrossMargin, Weight: 0.15, Default: 60, Ladder: &Ladder{
						Mode: Below, Else: 20,
						Bands: []Band{{Bound: 25, Score: 85}, {Bound: 35, Score: 60}, {Bound: 45, Score: 40}},
					}},
					{Name: "going_concern", Metric: MetricGoingConcern, Weight: 0.20, Default: 50, Ladder: &Ladder{
						Mode: AtLeast, Else: 20,
						Bands: []Band{{Bound: 1, Score: 100}},
					}},
				},
			},
			{
				Name:   "market",
				Weight: 0.20,
				Factors: []Factor{
					{Name: "price_decline", Metric: MetricPriceChange, Weight: 0.30, Default: 95, Ladder: &Ladder{
						Mode: Below, Else: 25,
						Bands: []Band{{Bound: -80, Score: 100}, {Bound: -50, Score: 90}, {Bound: -30, Score: 75}, {Bound: -10, Score: 55}},
					}},
					{Name: "volatility", Metric: MetricVolatility, Weight: 0.25, Default: 80, Ladder: &Ladder{
						Mode: Above, Else: 20,
						Bands: []Band{{Bound: 150, Score: 95}, {Bound: 100, Score: 80}, {Bound: 60, Score: 60}, {Bound: 30, Score: 40}},
					}},
					{Name: "delisting_risk", Metric: MetricLatestClose, Weight: 0.25, Default: 100, Ladder: &Ladder{
						Mode: Below, Else: 20,
						Bands: []Band{{Bound: 1, Score: 100}, {Bound: 5, Score: 75}},
					}},
					// Distressed names trade heavily or dry up, so anything short of a collapse scores 70.
					{Name: "volume_trend", Metric: MetricVolumeChange, Weight: 0.20, Default: 70, Ladder: &Ladder{
						Mode: Below, Else: 70,
						Bands: []Band{{Bound: -50, Score: 85}},
					}},
				},
			},
			{
				Name:   "sentiment",
				Weight: 0.20,
				Factors: []Factor{
					// -1 -> 100, 0 -> 50, 1 -> 0
					{Name: "overall_sentiment", Metric: MetricSentiment, Weight: 0.30, Default: 70, Linear: &Linear{Offset: 50, Scale: -50}},
					{Name: "negative_density", Metric: MetricNegativeRatio, Weight: 0.25, Default: 50, Linear: &Linear{Scale: 100}},
					{Name: "extreme_events", Metric: MetricExtremeEvents, Weight: 0.25, Default: 60, Ladder: &Ladder{
						Mode: AtLeast, Else: 25,
						Bands: []Band{{Bound: 4, Score: 95}, {Bound: 2, Score: 80}, {Bound: 1, Score: 60}},
					}},
					{Name: "media_attention", Metric: MetricMediaAttention, Weight: 0.20, Default: 50},
				},
			},
			{
				Name:   "operational",
				Weight: 0.15,
				Factors: []Factor{
					{Name: "management_change", Metric: MetricManagementChange, Weight: 0.20, Default: 50},
					{Name: "workforce_reduction", Metric: MetricWorkforceReduction, Weight: 0.25, Default: 60, Ladder: &Ladder{
						Mode: Above, Else: 30,
						Bands: []Band{{Bound: 50, Score: 95}, {Bound: 30, Score: 80}, {Bound: 15, Score: 60}},
					}},
					{Name: "employee_sentiment", Metric: MetricEmployeeRating, Weight: 0.20, Default: 60, Linear: employeeRatingRisk},
					{Name: "competition", Metric: MetricCompetition, Weight: 0.20, Default: 70},
					{Name: "regulatory", Metric: MetricRegulatory, Weight: 0.15, Default: 50},
				},
			},
			{
				Name:   "supply_chain",
				Weight: 0.20,
				Factors: []Factor{
					{Name: "single_source_dependency", Metric: MetricSupplierHHI, Weight: 0.25, Default: 75, Ladder: &Ladder{
						Mode: Above, Else: 30,
						Bands: []Band{{Bound: 4000, Score: 90}, {Bound: 2500, Score: 75}, {Bound: 1500, Score: 55}},
					}},
					{Name: "geopolitical_risk", Metric: MetricChinaDependency, Weight: 0.20, Default: 70, Ladder: &Ladder{
						Mode: Above, Else: 30,
						Bands: []Band{{Bound: 90, Score: 95}, {Bound: 70, Score: 80}, {Bound: 50, Score: 60}},
					}},
					{Name: "tariff_exposure", Metric: MetricTariffExposure, Weight: 0.15, Default: 60},
					{Name: "inventory_management", Metric: MetricInventoryDays, Weight: 0.15, Default: 60, Ladder: &Ladder{
						Mode: Above, Else: 25,
						Bands: []Band{{Bound: 90, Score: 85}, {Bound: 75, Score: 70}, {Bound: 60, Score: 50}},
					}},
					{Name: "logistics_disruption", Metric: MetricGSCPI, Weight: 0.15, Default: 50, Ladder: &Ladder{
						Mode: Above, Else: 30,
						Bands: []Band{{Bound: 2, Score: 90}, {Bound: 1, Score: 70}, {Bound: 0, Score: 50}},
					}},
					{Name: "quality_control", Metric: MetricQualityControl, Weight: 0.10, Default: 50},
				},
			},
		},
	}
}

// PrivateModel scores an unlisted company from reputation, funding and trade signals.
func PrivateModel() Model {
	shipmentTrend := func(severe, moderate, mild float64) *Ladder {
		return &Ladder{
			Mode: Below, Else: mild,
			Bands: []Band{{Bound: -0.5, Score: severe}, {Bound: -0.2, Score: moderate}},
		}
	}
	return Model{
		Profile: ProfilePrivate,
		Levels:  append([]Level(nil), DefaultLevels...),
		Dimensions: []DimensionSpec{
			{
				Name:   "reputation",
				Weight: 0.20,
				Factors: []Factor{
					{Name: "employee_sentiment", Metric: MetricEmployeeRating, Weight: 0.70, Default: 60, Linear: employeeRatingRisk},
					{Name: "overall_sentiment", Metric: MetricSentiment, Weight: 0.30, Default: 50, Linear: &Linear{Offset: 50, Scale: -50}},
				},
			},
			{
				Name:   "financing",
				Weight: 0.20,
				Factors: []Factor{
					{Name: "funding_gap", Metric: MetricFundingGap, Weight: 1, Default: 55, Ladder: &Ladder{
						Mode: Above, Else: 20,
						Bands: []Band{{Bound: 30, Score: 55, Slope: 1.5}, {Bound: 18, Score: 40, Slope: 1.2}},
					}},
				},
			},
			{
				Name:   "trade_activity",
				Weight: 0.25,
				Factors: []Factor{
					{Name: "shipment_trend", Metric: MetricShipmentTrend, Weight: 0.75, Default: 70, Ladder: shipmentTrend(95, 70, 45)},
					{Name: "idle_months", Metric: MetricIdleMonths, Weight: 0.25, Default: 50, Linear: &Linear{Scale: 10}},
				},
			},
			{
				Name:   "operations",
				Weight: 0.15,
				Factors: []Factor{
					{Name: "litigation", Metric: MetricLawsuit, Weight: 0.40, Default: 50, Ladder: &Ladder{
						Mode: AtLeast, Else: 30,
						Bands: []Band{{Bound: 1, Score: 80}},
					}},
					{Name: "management_stability", Metric: MetricManagementStable, Weight: 0.30, Default: 50, Linear: &Linear{Offset: 100, Scale: -100}},
					{Name: "employee_satisfaction", Metric: MetricEmployeeRating, Weight: 0.30, Default: 50, Linear: &Linear{Offset: 100, Scale: -20}},
				},
			},
			{
				Name:   "supply_chain",
				Weight: 0.20,
				Factors: []Factor{
					{Name: "supplier_concentration", Metric: MetricSupplierHHI, Weight: 0.40, Default: 60, Ladder: &Ladder{
						Mode: Above, Else: 40,
						Bands: []Band{{Bound: 4000, Score: 90}, {Bound: 2500, Score: 70}},
					}},
					{Name: "geographic_concentration", Metric: MetricChinaDependency, Weight: 0.40, Default: 60},
					{Name: "trade_decline", Metric: MetricShipmentTrend, Weight: 0.20, Default: 60, Ladder: shipmentTrend(90, 70, 50)},
				},
			},
		},
	}
}
