// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// DateLayout is the on-disk date format for every series.
const DateLayout = "2006-01-02"

// Observation is one dated value from a source. Identity is (Source, SeriesID, Date).
type Observation struct {
	Source   string    // collector name, e.g. "fred"
	SeriesID string    // series within the source, e.g. "UNRATE" or a ticker
	Date     time.Time // observation date, day precision
	Value    float64   // scalar value; the close for price bars
	Bar      *Bar      // set for OHLCV price series
}

// Bar carries the optional OHLCV fields of a price observation.
type Bar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Key returns the identity of the observation.
func (o Observation) Key() string {
	return strings.Join([]string{o.Source, o.SeriesID, o.Date.Format(DateLayout)}, "|")
}

// Values returns the scalar values of obs in order.
func Values(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Value
	}
	return out
}
