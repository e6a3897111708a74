package service

import (
	"math"
	"sort"
	"strings"

	"github.com/okian/riskdiag/internal/adapters/collector"
	"github.com/okian/riskdiag/internal/domain/model"
)

const (
	tradingDays       = 252
	minVolatilityBars = 20
	minVolumeBars     = 60
	volumeWindow      = 30
	negativeEventCut  = -0.3
)

// PriceChange is the percent move from the first to the last close.
func PriceChange(closes []float64) (float64, bool) {
	if len(closes) < 2 || closes[0] == 0 {
		return 0, false
	}
	return (closes[len(closes)-1] - closes[0]) / closes[0] * 100, true
}

// Volatility annualises the sample standard deviation of daily returns, in percent.
// It needs more than twenty closes.
func Volatility(closes []float64) (float64, bool) {
	if len(closes) <= minVolatilityBars {
		return 0, false
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0, false
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(ss / float64(len(returns)-1))
	return sd * math.Sqrt(tradingDays) * 100, true
}

// VolumeChange compares the mean volume of the last thirty sessions with the
// first thirty, in percent. It needs more than sixty sessions.
func VolumeChange(volumes []float64) (float64, bool) {
	if len(volumes) <= minVolumeBars {
		return 0, false
	}
	first := mean(volumes[:volumeWindow])
	last := mean(volumes[len(volumes)-volumeWindow:])
	if first == 0 {
		return 0, false
	}
	return (last - first) / first * 100, true
}

// HHI is the Herfindahl-Hirschman index of shares given in percent.
func HHI(sharesPct []float64) (float64, bool) {
	if len(sharesPct) == 0 {
		return 0, false
	}
	var h float64
	for _, s := range sharesPct {
		h += s * s
	}
	return h, true
}

// ShipmentTrend is the fractional change of the latest year against the one
// before, with a partial latest year annualised.
func ShipmentTrend(years []model.YearCount) (float64, bool) {
	if len(years) < 2 {
		return 0, false
	}
	ys := append([]model.YearCount(nil), years...)
	sort.Slice(ys, func(i, j int) bool { return ys[i].Year < ys[j].Year })
	last, prev := ys[len(ys)-1], ys[len(ys)-2]
	if prev.Count == 0 {
		return 0, false
	}
	months := last.Months
	if months <= 0 || months > 12 {
		months = 12
	}
	annual := float64(last.Count) * 12 / float64(months)
	return (annual - float64(prev.Count)) / float64(prev.Count), true
}

// IdleMonths counts months without shipments in the latest year present.
func IdleMonths(months []model.MonthCount) (float64, bool) {
	if len(months) == 0 {
		return 0, false
	}
	latest := ""
	for _, m := range months {
		if y := yearOf(m.Month); y > latest {
			latest = y
		}
	}
	var idle float64
	for _, m := range months {
		if yearOf(m.Month) == latest && m.Count == 0 {
			idle++
		}
	}
	return idle, true
}

// ConsecutiveLosses counts the most recent fiscal years in a row with a net loss.
func ConsecutiveLosses(netIncome []collector.FactValue) (float64, bool) {
	if len(netIncome) == 0 {
		return 0, false
	}
	vals := byEndDesc(netIncome)
	var n float64
	for _, v := range vals {
		if v.Value >= 0 {
			break
		}
		n++
	}
	return n, true
}

// GrowthPct is the percent change between the two most recent values.
func GrowthPct(vals []collector.FactValue) (float64, bool) {
	if len(vals) < 2 {
		return 0, false
	}
	sorted := byEndDesc(vals)
	cur, prev := sorted[0].Value, sorted[1].Value
	if prev == 0 {
		return 0, false
	}
	return (cur - prev) / math.Abs(prev) * 100, true
}

// NewsSignals derives the sentiment metrics of a news snapshot: the share of
// clearly negative events, the count of extreme or high risk events and a
// media attention index.
func NewsSignals(n model.NewsSnapshot) (negativeRatio, extreme, attention float64) {
	var negative int
	for _, e := range n.Events {
		if e.Score < negativeEventCut {
			negative++
		}
		if e.RiskLevel == "extreme" || e.RiskLevel == "high" {
			extreme++
		}
	}
	if len(n.Events) > 0 {
		negativeRatio = float64(negative) / float64(len(n.Events))
	}
	switch {
	case n.MediaCoverage == "high" && n.SentimentScore < -0.5:
		attention = 85
	case n.MediaCoverage == "high":
		attention = 50
	default:
		attention = 40
	}
	return negativeRatio, extreme, attention
}

// AverageRating is the mean rating across review platforms.
func AverageRating(r model.ReviewSnapshot) (float64, bool) {
	if len(r.Platforms) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range r.Platforms {
		sum += p.Rating
	}
	return sum / float64(len(r.Platforms)), true
}

// ChinaShare sums the shipment share of suppliers based in China.
func ChinaShare(suppliers []model.Supplier) (float64, bool) {
	if len(suppliers) == 0 {
		return 0, false
	}
	var share float64
	for _, s := range suppliers {
		switch strings.ToLower(strings.TrimSpace(s.Country)) {
		case "china", "cn", "chn", "prc":
			share += s.SharePct
		}
	}
	return share, true
}

func byEndDesc(vals []collector.FactValue) []collector.FactValue {
	out := append([]collector.FactValue(nil), vals...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].End > out[j].End })
	return out
}

func yearOf(month string) string {
	if len(month) < 4 {
		return month
	}
	return month[:4]
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
