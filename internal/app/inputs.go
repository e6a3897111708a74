package service

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/okian/riskdiag/internal/adapters/collector"
	"github.com/okian/riskdiag/internal/adapters/repository"
	"github.com/okian/riskdiag/internal/domain/facts"
	"github.com/okian/riskdiag/internal/domain/model"
	"github.com/okian/riskdiag/internal/domain/scoring"
	"github.com/okian/riskdiag/pkg/logger"
)

// XBRL concepts read back by the metric loader.
const (
	conceptRevenue      = "Revenues"
	conceptRevenueASC   = "RevenueFromContractWithCustomerExcludingAssessedTax"
	conceptNetIncome    = "NetIncomeLoss"
	conceptGrossProfit  = "GrossProfit"
	conceptCash         = "CashAndCashEquivalentsAtCarryingValue"
	conceptLongTermDebt = "LongTermDebt"
	conceptEPSDiluted   = "EarningsPerShareDiluted"
)

// metricLoader fills a Metrics map from the data directory and the facts.
// Every read is best effort: a missing or malformed file leaves its metrics unset.
type metricLoader struct {
	store repository.Store
	facts *facts.Facts
	log   logger.Logger
	out   scoring.Metrics
}

// DeriveMetrics builds the scorer input from the files in store and the
// curated facts. f may be nil.
func DeriveMetrics(ctx context.Context, store repository.Store, f *facts.Facts, log logger.Logger) scoring.Metrics {
	if f == nil {
		f = &facts.Facts{}
	}
	if log == nil {
		log = logger.Named("inputs")
	}
	l := &metricLoader{store: store, facts: f, log: log, out: scoring.Metrics{}}
	l.market(ctx)
	l.financial(ctx)
	l.sentiment(ctx)
	l.operational(ctx)
	l.supplyChain(ctx)
	l.trade(ctx)
	return l.out
}

func (l *metricLoader) setPtr(name string, v *float64) {
	if v != nil && finite(*v) {
		l.out[name] = *v
	}
}

func (l *metricLoader) setBool(name string, v *bool) {
	if v == nil {
		return
	}
	if *v {
		l.out[name] = 1
	} else {
		l.out[name] = 0
	}
}

func (l *metricLoader) readJSON(ctx context.Context, name string, v any) bool {
	err := l.store.ReadJSON(ctx, name, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, repository.ErrNotFound):
		l.log.Debug(ctx, "input absent", logger.String("file", name))
	default:
		l.log.Warn(ctx, "input unreadable", logger.String("file", name), logger.Error(err))
	}
	return false
}

func (l *metricLoader) readSeries(ctx context.Context, name string) []model.Observation {
	obs, err := l.store.ReadObservations(ctx, name)
	switch {
	case err == nil:
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
		return obs
	case errors.Is(err, repository.ErrNotFound):
		l.log.Debug(ctx, "input absent", logger.String("file", name))
	default:
		l.log.Warn(ctx, "input unreadable", logger.String("file", name), logger.Error(err))
	}
	return nil
}

func (l *metricLoader) market(ctx context.Context) {
	prices := l.readSeries(ctx, collector.FileStockPrices)
	if len(prices) == 0 {
		return
	}
	closes := make([]float64, len(prices))
	volumes := make([]float64, 0, len(prices))
	for i, p := range prices {
		closes[i] = p.Value
		if p.Bar != nil {
			volumes = append(volumes, float64(p.Bar.Volume))
		}
	}
	l.out[scoring.MetricLatestClose] = closes[len(closes)-1]
	if v, ok := round2(PriceChange(closes)); ok {
		l.out[scoring.MetricPriceChange] = v
	}
	if v, ok := round2(Volatility(closes)); ok {
		l.out[scoring.MetricVolatility] = v
	}
	if v, ok := round2(VolumeChange(volumes)); ok {
		l.out[scoring.MetricVolumeChange] = v
	}
}

func (l *metricLoader) financial(ctx context.Context) {
	fin := l.facts.Financial
	var xbrl collector.SECXBRL
	haveXBRL := l.readJSON(ctx, collector.FileSECXBRL, &xbrl)
	concept := func(name string) collector.ConceptSeries {
		if !haveXBRL {
			return collector.ConceptSeries{}
		}
		return xbrl.Concepts[name]
	}

	if fin.RevenueYoYPct != nil {
		l.setPtr(scoring.MetricRevenueYoY, fin.RevenueYoYPct)
	} else {
		rev := concept(conceptRevenue).Annual
		if len(rev) < 2 {
			rev = concept(conceptRevenueASC).Annual
		}
		if v, ok := round2(GrowthPct(rev)); ok {
			l.out[scoring.MetricRevenueYoY] = v
		}
	}

	if fin.GAAPEPS != nil {
		l.setPtr(scoring.MetricGAAPEPS, fin.GAAPEPS)
	} else if eps := byEndDesc(concept(conceptEPSDiluted).Annual); len(eps) > 0 {
		l.out[scoring.MetricGAAPEPS] = eps[0].Value
	}

	switch {
	case fin.CashUSDM != nil && fin.DebtUSDM != nil && *fin.DebtUSDM > 0:
		l.out[scoring.MetricCashDebtRatio] = *fin.CashUSDM / *fin.DebtUSDM
	default:
		cash, debt := latestValue(concept(conceptCash)), latestValue(concept(conceptLongTermDebt))
		if cash != nil && debt != nil && *debt > 0 {
			l.out[scoring.MetricCashDebtRatio] = *cash / *debt
		}
	}

	if fin.GrossMarginPct != nil {
		l.setPtr(scoring.MetricGrossMargin, fin.GrossMarginPct)
	} else {
		profit := concept(conceptGrossProfit).Annual
		v, ok := grossMargin(profit, concept(conceptRevenue).Annual)
		if !ok {
			v, ok = grossMargin(profit, concept(conceptRevenueASC).Annual)
		}
		if ok {
			l.out[scoring.MetricGrossMargin] = v
		}
	}

	l.setBool(scoring.MetricGoingConcern, fin.GoingConcern)
	if v, ok := ConsecutiveLosses(concept(conceptNetIncome).Annual); ok {
		l.out[scoring.MetricConsecutiveLosses] = v
	}
}

func (l *metricLoader) sentiment(ctx context.Context) {
	var news model.NewsSnapshot
	if !l.readJSON(ctx, collector.FileNews, &news) {
		return
	}
	l.out[scoring.MetricSentiment] = news.SentimentScore
	ratio, extreme, attention := NewsSignals(news)
	if len(news.Events) > 0 {
		l.out[scoring.MetricNegativeRatio] = ratio
		l.out[scoring.MetricExtremeEvents] = extreme
	}
	l.out[scoring.MetricMediaAttention] = attention
}

func (l *metricLoader) operational(ctx context.Context) {
	ops := l.facts.Operations
	l.setPtr(scoring.MetricManagementChange, ops.ManagementChange)
	l.setPtr(scoring.MetricCompetition, ops.Competition)
	l.setPtr(scoring.MetricRegulatory, ops.Regulatory)
	l.setPtr(scoring.MetricManagementStable, ops.ManagementStability)
	l.setPtr(scoring.MetricFundingGap, ops.FundingGapMonths)
	l.setBool(scoring.MetricLawsuit, ops.Lawsuit)
	if ops.HeadcountBefore != nil && ops.HeadcountAfter != nil && *ops.HeadcountBefore > 0 {
		before, after := float64(*ops.HeadcountBefore), float64(*ops.HeadcountAfter)
		l.out[scoring.MetricWorkforceReduction] = scoring.Round1((before - after) / before * 100)
	}

	var reviews model.ReviewSnapshot
	if l.readJSON(ctx, collector.FileReviews, &reviews) {
		if v, ok := round2(AverageRating(reviews)); ok {
			l.out[scoring.MetricEmployeeRating] = v
		}
	}
}

func (l *metricLoader) supplyChain(ctx context.Context) {
	sc := l.facts.SupplyChain
	l.setPtr(scoring.MetricTariffExposure, sc.TariffExposure)
	l.setPtr(scoring.MetricInventoryDays, sc.InventoryDays)
	l.setPtr(scoring.MetricQualityControl, sc.QualityControl)
	if v, ok := HHI(sc.SupplierSharesPct); ok {
		l.out[scoring.MetricSupplierHHI] = v
	}
	l.setPtr(scoring.MetricChinaDependency, sc.ChinaDependencyPct)

	if gscpi := l.readSeries(ctx, collector.FileGSCPI); len(gscpi) > 0 {
		l.out[scoring.MetricGSCPI] = gscpi[len(gscpi)-1].Value
	}
}

// trade reads the shipment profile. Curated supply-chain facts win over the
// shares derived from shipments.
func (l *metricLoader) trade(ctx context.Context) {
	var sp model.ShipmentProfile
	if !l.readJSON(ctx, collector.FileShipments, &sp) {
		return
	}
	if v, ok := round2(ShipmentTrend(sp.Yearly)); ok {
		l.out[scoring.MetricShipmentTrend] = v
	}
	if v, ok := IdleMonths(sp.Monthly); ok {
		l.out[scoring.MetricIdleMonths] = v
	}

	shares := make([]float64, len(sp.Suppliers))
	for i, s := range sp.Suppliers {
		shares[i] = s.SharePct
	}
	if _, ok := l.out[scoring.MetricSupplierHHI]; !ok {
		if v, ok := HHI(shares); ok {
			l.out[scoring.MetricSupplierHHI] = v
		}
	}
	if _, ok := l.out[scoring.MetricChinaDependency]; !ok {
		if v, ok := ChinaShare(sp.Suppliers); ok {
			l.out[scoring.MetricChinaDependency] = v
		}
	}
}

// latestValue prefers the newest quarterly value over the newest annual one.
func latestValue(c collector.ConceptSeries) *float64 {
	for _, vals := range [][]collector.FactValue{c.Quarterly, c.Annual} {
		if sorted := byEndDesc(vals); len(sorted) > 0 {
			v := sorted[0].Value
			return &v
		}
	}
	return nil
}

func grossMargin(profit, revenue []collector.FactValue) (float64, bool) {
	p, r := byEndDesc(profit), byEndDesc(revenue)
	if len(p) == 0 || len(r) == 0 || p[0].End != r[0].End || r[0].Value == 0 {
		return 0, false
	}
	return scoring.Round1(p[0].Value / r[0].Value * 100), true
}

func round2(v float64, ok bool) (float64, bool) {
	if !ok {
		return 0, false
	}
	return math.Round(v*100) / 100, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
