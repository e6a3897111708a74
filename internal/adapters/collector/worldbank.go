package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/riskdiag/internal/domain/model"
)

const (
	lpiIndicator = "LP.LPI.OVRL.XQ"
	lpiCountries = "USA;CHN;DEU;JPN"
	lpiYears     = "2018:2025"
)

type worldBankRow struct {
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

// worldBankSource reads the Logistics Performance Index for the sourcing countries.
type worldBankSource struct {
	c    *Client
	base string
}

func (s *worldBankSource) Name() string { return SourceWorldBank }

func (s *worldBankSource) Outputs(Query) []string { return []string{FileWorldBank} }

func (s *worldBankSource) Collect(ctx context.Context, _ Query) (Dataset, error) {
	u := fmt.Sprintf("%s/v2/country/%s/indicator/%s?format=json&per_page=100&date=%s", s.base, lpiCountries, lpiIndicator, lpiYears)
	// the payload is [paging, rows]; an error reply has only the first element
	var parts []json.RawMessage
	if err := s.c.GetJSON(ctx, u, nil, &parts); err != nil {
		return Dataset{}, err
	}
	if len(parts) < 2 {
		return Dataset{}, fmt.Errorf("%w: world bank returned no data page", ErrSourceUnavailable)
	}
	var rows []worldBankRow
	if err := decodeJSON(parts[1], &rows); err != nil {
		return Dataset{}, err
	}
	obs := make([]model.Observation, 0, len(rows))
	for _, r := range rows {
		if r.Value == nil {
			continue
		}
		year, err := strconv.Atoi(r.Date)
		if err != nil {
			continue
		}
		id := r.CountryISO3
		if id == "" {
			id = r.Country.ID
		}
		obs = append(obs, model.Observation{
			Source:   SourceWorldBank,
			SeriesID: id,
			Date:     time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			Value:    *r.Value,
		})
	}
	if len(obs) == 0 {
		return Dataset{}, fmt.Errorf("%w: no LPI values", ErrSourceUnavailable)
	}
	return Dataset{Series: []SeriesFile{{Name: FileWorldBank, Observations: obs}}}, nil
}
