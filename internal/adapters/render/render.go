// Package render draws PNG charts from an assessment and the collected series.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg" // png canvas

	"github.com/okian/riskdiag/internal/domain/model"
	"github.com/okian/riskdiag/pkg/logger"
	"github.com/okian/riskdiag/pkg/metrics"
)

// Chart names.
const (
	ChartRiskRadar           = "risk_radar"
	ChartFactorContributions = "factor_contributions"
	ChartDimensionShare      = "dimension_share"
	ChartFactorHeatmap       = "factor_heatmap"
	ChartStockPrice          = "stock_price"
	ChartGSCPI               = "gscpi"
	ChartCompetitorMargins   = "competitor_margins"
)

// Chart statuses.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Event annotates a date on the price chart.
type Event struct {
	Date  time.Time
	Label string
}

// Input is everything the charts read.
type Input struct {
	Assessment  model.Assessment
	Prices      []model.Observation
	GSCPI       []model.Observation
	Events      []Event
	Competitors []model.Competitor
}

// Result is the outcome of one chart.
type Result struct {
	Chart  string `json:"chart"`
	File   string `json:"file,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type chart struct {
	name   string
	width  vg.Length
	height vg.Length
	draw   func(Input) (*plot.Plot, error)
}

var charts = []chart{
	{ChartRiskRadar, 6 * vg.Inch, 6 * vg.Inch, riskRadar},
	{ChartFactorContributions, 9 * vg.Inch, 6 * vg.Inch, factorContributions},
	{ChartDimensionShare, 6 * vg.Inch, 6 * vg.Inch, dimensionShare},
	{ChartFactorHeatmap, 9 * vg.Inch, 5 * vg.Inch, factorHeatmap},
	{ChartStockPrice, 10 * vg.Inch, 5 * vg.Inch, stockPrice},
	{ChartGSCPI, 10 * vg.Inch, 4 * vg.Inch, gscpiSeries},
	{ChartCompetitorMargins, 9 * vg.Inch, 5 * vg.Inch, competitorMargins},
}

// Names lists every chart in render order.
func Names() []string {
	out := make([]string, len(charts))
	for i, c := range charts {
		out[i] = c.name
	}
	return out
}

// Renderer writes charts into a directory.
type Renderer struct {
	dir   string
	only  map[string]bool
	scale float64
	log   logger.Logger
}

// Option applies a configuration option to the Renderer.
type Option func(*Renderer)

// WithCharts restricts rendering to the named charts.
func WithCharts(names ...string) Option {
	return func(r *Renderer) {
		if len(names) == 0 {
			return
		}
		r.only = map[string]bool{}
		for _, n := range names {
			r.only[n] = true
		}
	}
}

// WithScale multiplies every chart size.
func WithScale(s float64) Option {
	return func(r *Renderer) {
		if s > 0 {
			r.scale = s
		}
	}
}

// WithLogger sets a custom logger for the renderer.
func WithLogger(l logger.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates dir if needed and returns a renderer writing there.
func New(dir string, opts ...Option) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create chart dir %s: %w", ErrRender, dir, err)
	}
	r := &Renderer{dir: dir, scale: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render draws every chart. A failing chart is logged and reported; the rest still render.
func (r *Renderer) Render(ctx context.Context, in Input) []Result {
	if r.log == nil {
		r.log = logger.Named("render")
	}
	out := make([]Result, 0, len(charts))
	for _, c := range charts {
		if r.only != nil && !r.only[c.name] {
			continue
		}
		if ctx.Err() != nil {
			out = append(out, Result{Chart: c.name, Status: StatusSkipped, Error: ctx.Err().Error()})
			continue
		}
		res := r.renderOne(c, in)
		metrics.RecordChart(res.Chart, res.Status)
		switch res.Status {
		case StatusOK:
			r.log.Debug(ctx, "chart rendered", logger.String("chart", res.Chart), logger.String("file", res.File))
		case StatusSkipped:
			r.log.Info(ctx, "chart skipped", logger.String("chart", res.Chart), logger.String("reason", res.Error))
		default:
			r.log.Warn(ctx, "chart failed", logger.String("chart", res.Chart), logger.String("error", res.Error))
		}
		out = append(out, res)
	}
	return out
}

func (r *Renderer) renderOne(c chart, in Input) Result {
	res := Result{Chart: c.name}
	p, err := c.draw(in)
	if err != nil {
		res.Error = err.Error()
		res.Status = StatusFailed
		if errors.Is(err, ErrNoData) {
			res.Status = StatusSkipped
		}
		return res
	}
	path := filepath.Join(r.dir, c.name+".png")
	w, h := vg.Length(float64(c.width)*r.scale), vg.Length(float64(c.height)*r.scale)
	if err := p.Save(w, h, path); err != nil {
		res.Status = StatusFailed
		res.Error = fmt.Errorf("%w: save %s: %w", ErrRender, c.name, err).Error()
		return res
	}
	res.Status = StatusOK
	res.File = path
	return res
}
