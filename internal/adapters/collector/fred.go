package collector

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/riskdiag/internal/domain/model"
)

type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// fredSource reads the observations API when a key is set and the public
// fredgraph.csv download otherwise.
type fredSource struct {
	c         *Client
	apiBase   string
	graphBase string
	key       string
}

func (s *fredSource) Name() string { return SourceFRED }

func (s *fredSource) Outputs(q Query) []string {
	out := make([]string, 0, len(q.Series))
	for _, id := range q.Series {
		out = append(out, FREDFile(id))
	}
	return out
}

func (s *fredSource) Collect(ctx context.Context, q Query) (Dataset, error) {
	if len(q.Series) == 0 {
		return Dataset{}, fmt.Errorf("%w: no series configured", ErrNotApplicable)
	}
	var ds Dataset
	var errs []error
	for _, id := range q.Series {
		obs, err := s.series(ctx, id, q.Start)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			ds.Notes = append(ds.Notes, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		ds.Series = append(ds.Series, SeriesFile{Name: FREDFile(id), Observations: obs})
	}
	if len(ds.Series) == 0 {
		return Dataset{}, errors.Join(errs...)
	}
	if s.key == "" {
		ds.Notes = append(ds.Notes, "no FRED key; used fredgraph.csv")
	}
	return ds, nil
}

func (s *fredSource) series(ctx context.Context, id string, start time.Time) ([]model.Observation, error) {
	if s.key == "" {
		return s.graphCSV(ctx, id, start)
	}
	params := url.Values{}
	params.Set("series_id", id)
	params.Set("api_key", s.key)
	params.Set("file_type", "json")
	if !start.IsZero() {
		params.Set("observation_start", start.Format(model.DateLayout))
	}
	var resp fredResponse
	if err := s.c.GetJSON(ctx, s.apiBase+"/fred/series/observations?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	obs := make([]model.Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		if v, day, ok := parseFREDRow(o.Date, o.Value); ok {
			obs = append(obs, model.Observation{Source: SourceFRED, SeriesID: id, Date: day, Value: v})
		}
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: no observations", ErrSourceUnavailable)
	}
	return obs, nil
}

func (s *fredSource) graphCSV(ctx context.Context, id string, start time.Time) ([]model.Observation, error) {
	params := url.Values{}
	params.Set("id", id)
	if !start.IsZero() {
		params.Set("cosd", start.Format(model.DateLayout))
	}
	body, err := s.c.Get(ctx, s.graphBase+"/graph/fredgraph.csv?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed csv: %w", ErrSourceUnavailable, err)
	}
	if len(rows) < 2 || len(rows[0]) < 2 {
		return nil, fmt.Errorf("%w: empty csv", ErrSourceUnavailable)
	}
	obs := make([]model.Observation, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		if v, day, ok := parseFREDRow(row[0], row[1]); ok {
			obs = append(obs, model.Observation{Source: SourceFRED, SeriesID: id, Date: day, Value: v})
		}
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: no observations", ErrSourceUnavailable)
	}
	return obs, nil
}

// parseFREDRow skips the "." placeholder FRED uses for missing values.
func parseFREDRow(date, value string) (float64, time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "." {
		return 0, time.Time{}, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	day, err := time.Parse(model.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return 0, time.Time{}, false
	}
	return v, day, true
}
