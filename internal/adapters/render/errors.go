package render

import "errors"

// Sentinel errors for chart rendering.
var (
	// ErrNoData means the chart's input is missing or too short to draw; the chart is skipped.
	ErrNoData = errors.New("no data for chart")
	// ErrRender wraps plotting and file errors.
	ErrRender = errors.New("render chart")
)
