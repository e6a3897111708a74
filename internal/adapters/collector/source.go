// Package collector fetches public data sources and persists one dataset per source.
package collector

import (
	"context"
	"strings"
	"time"

	"github.com/okian/riskdiag/internal/domain/model"
)

// Query identifies the company and the window to collect.
type Query struct {
	Company  string
	Ticker   string
	CIK      string
	Start    time.Time
	AsOf     time.Time
	Series   []string // FRED series ids
	Range    string   // chart range, e.g. "1y"
	Interval string   // chart interval, e.g. "1d"
}

// CIK10 returns the CIK zero-padded to ten digits.
func (q Query) CIK10() string {
	cik := strings.TrimLeft(strings.TrimSpace(q.CIK), "0")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// ShortName strips the legal suffix from the company name ("iRobot Corporation" -> "iRobot").
func (q Query) ShortName() string {
	name := strings.TrimSpace(q.Company)
	for _, suffix := range []string{" Corporation", " Corp.", " Corp", " Inc.", " Inc", " LLC", " Ltd.", " Ltd", " Co."} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(strings.TrimSuffix(name, suffix), ",")
		}
	}
	return name
}

// Source fetches one external data source.
type Source interface {
	// Name is the identifier used in configuration and reports.
	Name() string
	// Outputs lists the files the source writes for q.
	Outputs(q Query) []string
	// Collect fetches and normalizes the source.
	Collect(ctx context.Context, q Query) (Dataset, error)
}

// Dataset is the normalized output of one source.
type Dataset struct {
	Series    []SeriesFile
	Documents []Document
	// Notes are non-fatal problems worth a warning (one series failed, a secondary call failed).
	Notes []string
}

// SeriesFile is a list of observations persisted as CSV.
type SeriesFile struct {
	Name         string
	Observations []model.Observation
}

// Document is a JSON value persisted as-is.
type Document struct {
	Name    string
	Value   any
	Records int
}

// Records counts observations plus document records.
func (d Dataset) Records() int {
	n := 0
	for _, s := range d.Series {
		n += len(s.Observations)
	}
	for _, doc := range d.Documents {
		n += doc.Records
	}
	return n
}

// Files lists the file names in the dataset.
func (d Dataset) Files() []string {
	out := make([]string, 0, len(d.Series)+len(d.Documents))
	for _, s := range d.Series {
		out = append(out, s.Name)
	}
	for _, doc := range d.Documents {
		out = append(out, doc.Name)
	}
	return out
}
