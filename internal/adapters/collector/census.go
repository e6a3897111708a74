package collector

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// censusLag is how far behind the run date the latest published month is assumed to be.
const censusLag = 3

// CensusTrade is the US import value by HS2 chapter for one month.
type CensusTrade struct {
	Month string     `json:"month"`
	Rows  []TradeRow `json:"rows"`
}

// TradeRow is one HS2 chapter.
type TradeRow struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	ValueUSD    float64 `json:"general_value_usd"`
}

type censusSource struct {
	c    *Client
	base string
	key  string
}

func (s *censusSource) Name() string { return SourceCensus }

func (s *censusSource) Outputs(Query) []string { return []string{FileCensus} }

func (s *censusSource) Collect(ctx context.Context, q Query) (Dataset, error) {
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	month := asOf.AddDate(0, -censusLag, 0).Format("2006-01")
	params := url.Values{}
	params.Set("get", "I_COMMODITY,I_COMMODITY_LDESC,GEN_VAL_MO")
	params.Set("COMM_LVL", "HS2")
	params.Set("time", month)
	if s.key != "" {
		params.Set("key", s.key)
	}

	// a header row followed by data rows, all strings
	var table [][]string
	if err := s.c.GetJSON(ctx, s.base+"/data/timeseries/intltrade/imports/hs?"+params.Encode(), nil, &table); err != nil {
		return Dataset{}, err
	}
	if len(table) < 2 {
		return Dataset{}, fmt.Errorf("%w: no trade rows for %s", ErrSourceUnavailable, month)
	}
	col := map[string]int{}
	for i, h := range table[0] {
		col[h] = i
	}
	code, okCode := col["I_COMMODITY"]
	desc, okDesc := col["I_COMMODITY_LDESC"]
	val, okVal := col["GEN_VAL_MO"]
	if !okCode || !okDesc || !okVal {
		return Dataset{}, fmt.Errorf("%w: unexpected census header %v", ErrSourceUnavailable, table[0])
	}

	trade := CensusTrade{Month: month}
	for _, row := range table[1:] {
		if len(row) <= code || len(row) <= desc || len(row) <= val {
			continue
		}
		v, err := strconv.ParseFloat(row[val], 64)
		if err != nil {
			continue
		}
		trade.Rows = append(trade.Rows, TradeRow{Code: row[code], Description: row[desc], ValueUSD: v})
	}
	sort.SliceStable(trade.Rows, func(i, j int) bool { return trade.Rows[i].ValueUSD > trade.Rows[j].ValueUSD })
	return Dataset{Documents: []Document{{Name: FileCensus, Value: trade, Records: len(trade.Rows)}}}, nil
}
