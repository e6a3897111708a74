package scoring_test

import (
	"context"
	"errors"
	"math"
	"testing"

	scoring "github.com/okian/riskdiag/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// iRobot Q3 2025 financial inputs.
func financialFixture() scoring.Metrics {
	return scoring.Metrics{
		scoring.MetricRevenueYoY:    -24.6,
		scoring.MetricGAAPEPS:       -0.62,
		scoring.MetricCashDebtRatio: 24.8 / 190,
		scoring.MetricGrossMargin:   31,
		scoring.MetricGoingConcern:  1,
	}
}

func dimension(res scoring.Result, name string) scoring.DimensionResult {
	for _, d := range res.Dimensions {
		if d.Name == name {
			return d
		}
	}
	return scoring.DimensionResult{}
}

func factor(d scoring.DimensionResult, name string) scoring.FactorScore {
	for _, f := range d.Factors {
		if f.Name == name {
			return f
		}
	}
	return scoring.FactorScore{}
}

func TestEvaluate(t *testing.T) {
	Convey("Given the public profile", t, func() {
		model := scoring.PublicModel()

		Convey("When scoring the financial fixture", func() {
			res, err := scoring.Evaluate(model, financialFixture())
			So(err, ShouldBeNil)
			fin := dimension(res, "financial")

			Convey("Then revenue YoY of -24.6% lands in the < -20% band", func() {
				So(factor(fin, "revenue_trend").Score, ShouldEqual, 85)
			})

			Convey("And the dimension total matches the weighted sum", func() {
				// 85*.20 + 90*.20 + 98*.25 + 60*.15 + 100*.20
				So(fin.Total, ShouldEqual, 88.5)
				So(fin.Level, ShouldEqual, scoring.LevelExtreme)
				So(fin.Defaulted, ShouldBeEmpty)
			})

			Convey("And every other factor falls back to its default", func() {
				So(len(res.Defaulted()), ShouldBeGreaterThan, 0)
				So(res.Defaulted(), ShouldContain, "market.price_decline")
				So(factor(dimension(res, "market"), "price_decline").Score, ShouldEqual, 95)
				So(factor(dimension(res, "market"), "price_decline").Value, ShouldBeNil)
			})
		})

		Convey("When a metric is NaN or infinite", func() {
			res, err := scoring.Evaluate(model, scoring.Metrics{
				scoring.MetricRevenueYoY: math.NaN(),
				scoring.MetricVolatility: math.Inf(1),
			})
			So(err, ShouldBeNil)

			Convey("Then it is treated as missing", func() {
				So(factor(dimension(res, "financial"), "revenue_trend").Defaulted, ShouldBeTrue)
				So(factor(dimension(res, "financial"), "revenue_trend").Score, ShouldEqual, 70)
				So(factor(dimension(res, "market"), "volatility").Score, ShouldEqual, 80)
			})
		})

		Convey("When the same inputs are evaluated twice", func() {
			in := financialFixture()
			in[scoring.MetricVolatility] = 123.4
			a, errA := scoring.Evaluate(model, in)
			b, errB := scoring.Evaluate(model, in)

			Convey("Then the results are identical and inputs untouched", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a, ShouldResemble, b)
				So(len(in), ShouldEqual, 6)
				So(in[scoring.MetricRevenueYoY], ShouldEqual, -24.6)
			})
		})

		Convey("When metrics are extreme", func() {
			res, err := scoring.Evaluate(model, scoring.Metrics{
				scoring.MetricSentiment:      -40,
				scoring.MetricNegativeRatio:  12,
				scoring.MetricEmployeeRating: -3,
				scoring.MetricMediaAttention: 400,
			})
			So(err, ShouldBeNil)

			Convey("Then every score stays within [0,100]", func() {
				So(res.Composite, ShouldBeBetweenOrEqual, 0, 100)
				for _, d := range res.Dimensions {
					So(d.Total, ShouldBeBetweenOrEqual, 0, 100)
					for _, f := range d.Factors {
						So(f.Score, ShouldBeBetweenOrEqual, 0, 100)
					}
				}
			})
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given the default levels", t, func() {
		Convey("Then boundaries are inclusive", func() {
			So(scoring.Classify(85.0), ShouldEqual, scoring.LevelExtreme)
			So(scoring.Classify(84.9), ShouldEqual, scoring.LevelHigh)
			So(scoring.Classify(70), ShouldEqual, scoring.LevelHigh)
			So(scoring.Classify(50), ShouldEqual, scoring.LevelMedium)
			So(scoring.Classify(30), ShouldEqual, scoring.LevelLow)
			So(scoring.Classify(29.9), ShouldEqual, scoring.LevelVeryLow)
			So(scoring.Classify(0), ShouldEqual, scoring.LevelVeryLow)
		})

		Convey("Then every score in [0,100] maps to exactly one level", func() {
			for s := 0.0; s <= 100; s += 0.1 {
				matches := 0
				for i, l := range scoring.DefaultLevels {
					upper := math.Inf(1)
					if i > 0 {
						upper = scoring.DefaultLevels[i-1].Min
					}
					if s >= l.Min && s < upper {
						matches++
					}
				}
				So(matches, ShouldEqual, 1)
			}
		})
	})
}

func TestProfiles(t *testing.T) {
	Convey("Given the built-in profiles", t, func() {
		for _, name := range []string{scoring.ProfilePublic, scoring.ProfilePrivate} {
			m, err := scoring.Profile(name)
			So(err, ShouldBeNil)

			Convey("Then "+name+" validates and weights sum to one", func() {
				So(m.Validate(), ShouldBeNil)
				top := 0.0
				for _, d := range m.Dimensions {
					top += d.Weight
					sum := 0.0
					for _, f := range d.Factors {
						sum += f.Weight
					}
					So(math.Abs(sum-1), ShouldBeLessThanOrEqualTo, scoring.WeightTolerance)
				}
				So(math.Abs(top-1), ShouldBeLessThanOrEqualTo, scoring.WeightTolerance)
			})
		}

		Convey("When an unknown profile is requested", func() {
			_, err := scoring.Profile("hedge")
			So(errors.Is(err, scoring.ErrUnknownProfile), ShouldBeTrue)
		})

		Convey("When scoring the private fixture", func() {
			res, err := scoring.Evaluate(scoring.PrivateModel(), scoring.Metrics{
				scoring.MetricEmployeeRating: 1.5,
				scoring.MetricFundingGap:     36,
				scoring.MetricShipmentTrend:  -0.75,
				scoring.MetricIdleMonths:     7,
			})
			So(err, ShouldBeNil)

			Convey("Then the funding gap slope applies", func() {
				So(factor(dimension(res, "financing"), "funding_gap").Score, ShouldEqual, 64)
				So(dimension(res, "financing").Total, ShouldEqual, 64)
			})

			Convey("And the rating maps through the 1-5 scale", func() {
				So(factor(dimension(res, "reputation"), "employee_sentiment").Score, ShouldEqual, 87.5)
			})
		})
	})
}

func TestVolumeTrend(t *testing.T) {
	Convey("Given the public profile", t, func() {
		model := scoring.PublicModel()
		score := func(change float64) float64 {
			res, err := scoring.Evaluate(model, scoring.Metrics{scoring.MetricVolumeChange: change})
			So(err, ShouldBeNil)
			return factor(dimension(res, "market"), "volume_trend").Score
		}

		Convey("Then flat and surging volume both score 70", func() {
			So(score(0), ShouldEqual, 70)
			So(score(-20), ShouldEqual, 70)
			So(score(120), ShouldEqual, 70)
		})

		Convey("Then a collapse below -50% scores 85", func() {
			So(score(-60), ShouldEqual, 85)
		})
	})

	Convey("Given consecutive loss years among the metrics", t, func() {
		base := financialFixture()
		with := financialFixture()
		with[scoring.MetricConsecutiveLosses] = 3

		Convey("Then the composite is unchanged", func() {
			a, err := scoring.Evaluate(scoring.PublicModel(), base)
			So(err, ShouldBeNil)
			b, err := scoring.Evaluate(scoring.PublicModel(), with)
			So(err, ShouldBeNil)
			So(b.Composite, ShouldEqual, a.Composite)
		})
	})
}

func TestDimensionWeightOverrides(t *testing.T) {
	Convey("Given a scorer with overridden weights", t, func() {
		weights := map[string]float64{
			"financial": 0.2, "market": 0.2, "sentiment": 0.2, "operational": 0.2, "supply_chain": 0.2,
		}
		s, err := scoring.NewModelScorer(scoring.ProfilePublic, scoring.WithDimensionWeights(weights))
		So(err, ShouldBeNil)

		Convey("Then the effective model carries them and the base profile is untouched", func() {
			So(s.Model().Dimensions[0].Weight, ShouldEqual, 0.2)
			So(scoring.PublicModel().Dimensions[0].Weight, ShouldEqual, 0.25)
		})

		Convey("When scoring with a cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := s.Score(ctx, financialFixture())
			So(err, ShouldNotBeNil)
		})

		Convey("When overrides do not sum to one", func() {
			_, err := scoring.NewModelScorer(scoring.ProfilePublic, scoring.WithDimensionWeights(map[string]float64{"financial": 0.9}))
			So(errors.Is(err, scoring.ErrInvalidModel), ShouldBeTrue)
		})

		Convey("When an override is NaN", func() {
			_, err := scoring.NewModelScorer(scoring.ProfilePublic, scoring.WithDimensionWeights(map[string]float64{"financial": math.NaN()}))
			So(errors.Is(err, scoring.ErrInvalidModel), ShouldBeTrue)
		})

		Convey("When an override names an unknown dimension", func() {
			_, err := scoring.NewModelScorer(scoring.ProfilePublic, scoring.WithDimensionWeights(map[string]float64{"vibes": 1}))
			So(errors.Is(err, scoring.ErrUnknownDimension), ShouldBeTrue)
		})
	})
}
