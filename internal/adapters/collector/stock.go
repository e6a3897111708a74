package collector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cast"

	"github.com/okian/riskdiag/internal/domain/model"
)

// StockMeta is the quote summary returned with the price history.
type StockMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	Exchange           string  `json:"exchange"`
	RegularMarketPrice float64 `json:"regular_market_price"`
	FiftyTwoWeekHigh   float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow    float64 `json:"fifty_two_week_low"`
	PreviousClose      float64 `json:"previous_close"`
	Sessions           int     `json:"sessions"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta       map[string]any `json:"meta"`
			Timestamp  []int64        `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error map[string]any `json:"error"`
	} `json:"chart"`
}

type stockSource struct {
	c    *Client
	base string
}

func (s *stockSource) Name() string { return SourceStock }

func (s *stockSource) Outputs(Query) []string { return []string{FileStockPrices, FileStockMeta} }

func (s *stockSource) Collect(ctx context.Context, q Query) (Dataset, error) {
	if q.Ticker == "" {
		return Dataset{}, fmt.Errorf("%w: no ticker", ErrNotApplicable)
	}
	params := url.Values{}
	params.Set("range", orDefault(q.Range, "1y"))
	params.Set("interval", orDefault(q.Interval, "1d"))
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.base, url.PathEscape(q.Ticker), params.Encode())

	var resp chartResponse
	if err := s.c.GetJSON(ctx, u, nil, &resp); err != nil {
		return Dataset{}, err
	}
	if len(resp.Chart.Result) == 0 {
		return Dataset{}, fmt.Errorf("%w: chart has no result: %v", ErrSourceUnavailable, resp.Chart.Error["description"])
	}
	res := resp.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return Dataset{}, fmt.Errorf("%w: chart has no quote", ErrSourceUnavailable)
	}
	quote := res.Indicators.Quote[0]

	obs := make([]model.Observation, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		closeV := at(quote.Close, i)
		if closeV == nil {
			continue
		}
		bar := &model.Bar{Close: *closeV}
		if v := at(quote.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(quote.High, i); v != nil {
			bar.High = *v
		}
		if v := at(quote.Low, i); v != nil {
			bar.Low = *v
		}
		if v := at(quote.Volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		obs = append(obs, model.Observation{Source: SourceStock, SeriesID: q.Ticker, Date: day, Value: *closeV, Bar: bar})
	}
	if len(obs) == 0 {
		return Dataset{}, fmt.Errorf("%w: no closes for %s", ErrSourceUnavailable, q.Ticker)
	}

	meta := StockMeta{
		Symbol:             cast.ToString(res.Meta["symbol"]),
		Currency:           cast.ToString(res.Meta["currency"]),
		Exchange:           cast.ToString(res.Meta["exchangeName"]),
		RegularMarketPrice: cast.ToFloat64(res.Meta["regularMarketPrice"]),
		FiftyTwoWeekHigh:   cast.ToFloat64(res.Meta["fiftyTwoWeekHigh"]),
		FiftyTwoWeekLow:    cast.ToFloat64(res.Meta["fiftyTwoWeekLow"]),
		PreviousClose:      cast.ToFloat64(res.Meta["chartPreviousClose"]),
		Sessions:           len(obs),
	}
	if meta.Symbol == "" {
		meta.Symbol = q.Ticker
	}

	return Dataset{
		Series:    []SeriesFile{{Name: FileStockPrices, Observations: obs}},
		Documents: []Document{{Name: FileStockMeta, Value: meta}},
	}, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
