package collector

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/riskdiag/internal/domain/model"
)

// GSCPISeries is the series id of the Global Supply Chain Pressure Index.
const GSCPISeries = "GSCPI"

var gscpiDateLayouts = []string{
	model.DateLayout,
	"2-Jan-2006",
	"02-Jan-2006",
	"1/2/2006",
	"01-02-06",
	"1/2/06",
	"Jan-2006",
	"2006-01",
}

// gscpiSource downloads the NY Fed workbook and reads the first sheet with a
// date/value header.
type gscpiSource struct {
	c   *Client
	url string
}

func (s *gscpiSource) Name() string { return SourceGSCPI }

func (s *gscpiSource) Outputs(Query) []string { return []string{FileGSCPI} }

func (s *gscpiSource) Collect(ctx context.Context, _ Query) (Dataset, error) {
	body, err := s.c.Get(ctx, s.url, nil)
	if err != nil {
		return Dataset{}, err
	}
	obs, err := ParseGSCPIWorkbook(body)
	if err != nil {
		return Dataset{}, err
	}
	return Dataset{Series: []SeriesFile{{Name: FileGSCPI, Observations: obs}}}, nil
}

// ParseGSCPIWorkbook extracts the monthly index from the workbook bytes.
func ParseGSCPIWorkbook(b []byte) ([]model.Observation, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", ErrSourceUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if obs := gscpiRows(rows); len(obs) > 0 {
			return obs, nil
		}
	}
	return nil, fmt.Errorf("%w: no date/value table in workbook", ErrSourceUnavailable)
}

func gscpiRows(rows [][]string) []model.Observation {
	header := -1
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if h := strings.ToLower(strings.TrimSpace(row[0])); h == "date" || h == "month" {
			header = i
			break
		}
	}
	if header < 0 {
		return nil
	}
	var obs []model.Observation
	for _, row := range rows[header+1:] {
		if len(row) < 2 {
			continue
		}
		day, ok := parseSheetDate(row[0])
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			continue
		}
		obs = append(obs, model.Observation{Source: SourceGSCPI, SeriesID: GSCPISeries, Date: day, Value: v})
	}
	return obs
}

func parseSheetDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range gscpiDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// unformatted cells come through as the Excel serial number
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC().Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}
