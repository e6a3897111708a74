package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/okian/riskdiag/internal/domain/model"
	"github.com/okian/riskdiag/internal/domain/scoring"
)

const (
	arcSteps      = 48
	minLabelShare = 4.0 // percent; smaller segments are left unlabelled
)

var (
	gridColor  = color.Gray{Y: 180}
	alertColor = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	fillColor  = color.RGBA{R: 200, G: 40, B: 40, A: 90}
)

func title(p *plot.Plot, a model.Assessment, what string) {
	p.Title.Text = fmt.Sprintf("%s %s (%s)", a.Company, what, a.AssessmentDate)
}

// riskRadar draws one spoke per dimension with rings at the level bounds.
func riskRadar(in Input) (*plot.Plot, error) {
	dims := in.Assessment.Dimensions
	if len(dims) < 3 {
		return nil, fmt.Errorf("%w: radar needs 3 dimensions, have %d", ErrNoData, len(dims))
	}
	p := plot.New()
	title(p, in.Assessment, fmt.Sprintf("risk profile, composite %.1f %s", in.Assessment.Composite, in.Assessment.Level))
	p.HideAxes()
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = -1.35, 1.35, -1.35, 1.35

	angle := func(i int) float64 { return math.Pi/2 - 2*math.Pi*float64(i)/float64(len(dims)) }
	spoke := func(i int, r float64) plotter.XY {
		return plotter.XY{X: r * math.Cos(angle(i)), Y: r * math.Sin(angle(i))}
	}

	rings := []float64{100}
	for _, l := range scoring.DefaultLevels {
		if l.Min > 0 {
			rings = append(rings, l.Min)
		}
	}
	for _, ring := range rings {
		xys := make(plotter.XYs, len(dims))
		for i := range dims {
			xys[i] = spoke(i, ring/100)
		}
		poly, err := plotter.NewPolygon(xys)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		poly.LineStyle = draw.LineStyle{Color: gridColor, Width: vg.Points(0.5), Dashes: []vg.Length{vg.Points(2), vg.Points(2)}}
		p.Add(poly)
	}

	shape := make(plotter.XYs, len(dims))
	labels := plotter.XYLabels{XYs: make(plotter.XYs, len(dims)), Labels: make([]string, len(dims))}
	for i, d := range dims {
		shape[i] = spoke(i, d.Total/100)
		labels.XYs[i] = spoke(i, 1.15)
		labels.Labels[i] = fmt.Sprintf("%s %.1f", d.Name, d.Total)
	}
	poly, err := plotter.NewPolygon(shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	poly.Color = fillColor
	poly.LineStyle = draw.LineStyle{Color: alertColor, Width: vg.Points(1.5)}
	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	p.Add(poly, lbl)
	return p, nil
}

// factorContributions stacks the weighted sub-scores of each dimension.
func factorContributions(in Input) (*plot.Plot, error) {
	dims := in.Assessment.Dimensions
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: no dimensions", ErrNoData)
	}
	depth := maxFactors(dims)
	p := plot.New()
	title(p, in.Assessment, "factor contributions")
	p.Y.Label.Text = "weighted sub-score"
	p.Y.Min, p.Y.Max = 0, 100

	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
	}
	labels := plotter.XYLabels{}
	var below *plotter.BarChart
	base := make([]float64, len(dims))
	for k := 0; k < depth; k++ {
		vals := make(plotter.Values, len(dims))
		for i, d := range dims {
			if k >= len(d.Factors) {
				continue
			}
			f := d.Factors[k]
			vals[i] = f.Contribution
			if f.Contribution >= minLabelShare {
				labels.XYs = append(labels.XYs, plotter.XY{X: float64(i), Y: base[i] + f.Contribution/2})
				labels.Labels = append(labels.Labels, f.Name)
			}
			base[i] += f.Contribution
		}
		bars, err := plotter.NewBarChart(vals, vg.Points(40))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		bars.Color = plotutil.Color(k)
		bars.LineStyle.Width = vg.Length(0)
		if below != nil {
			bars.StackOn(below)
		}
		below = bars
		p.Add(bars)
	}
	if len(labels.XYs) > 0 {
		lbl, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		for i := range lbl.TextStyle {
			lbl.TextStyle[i].XAlign = draw.XCenter
			lbl.TextStyle[i].Font.Size = vg.Points(7)
		}
		p.Add(lbl)
	}
	p.NominalX(names...)
	return p, nil
}

// dimensionShare is a pie of each dimension's weighted share of the composite.
func dimensionShare(in Input) (*plot.Plot, error) {
	dims := in.Assessment.Dimensions
	total := 0.0
	for _, d := range dims {
		total += d.Total * d.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: composite is zero", ErrNoData)
	}
	p := plot.New()
	title(p, in.Assessment, "share of composite risk")
	p.HideAxes()
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = -1.2, 1.2, -1.2, 1.2

	labels := plotter.XYLabels{}
	start := math.Pi / 2
	for i, d := range dims {
		share := d.Total * d.Weight / total
		if share <= 0 {
			continue
		}
		end := start - share*2*math.Pi
		wedge := plotter.XYs{{X: 0, Y: 0}}
		for s := 0; s <= arcSteps; s++ {
			a := start + (end-start)*float64(s)/arcSteps
			wedge = append(wedge, plotter.XY{X: math.Cos(a), Y: math.Sin(a)})
		}
		poly, err := plotter.NewPolygon(wedge)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		poly.Color = plotutil.Color(i)
		poly.LineStyle = draw.LineStyle{Color: color.White, Width: vg.Points(1)}
		p.Add(poly)

		mid := (start + end) / 2
		labels.XYs = append(labels.XYs, plotter.XY{X: 0.62 * math.Cos(mid), Y: 0.62 * math.Sin(mid)})
		labels.Labels = append(labels.Labels, fmt.Sprintf("%s\n%.1f%%", d.Name, share*100))
		start = end
	}
	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].XAlign = draw.XCenter
		lbl.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(lbl)
	return p, nil
}

type factorGrid struct {
	z [][]float64 // z[row][col]
}

func (g factorGrid) Dims() (c, r int)   { return len(g.z[0]), len(g.z) }
func (g factorGrid) Z(c, r int) float64 { return g.z[r][c] }
func (g factorGrid) X(c int) float64    { return float64(c) }
func (g factorGrid) Y(r int) float64    { return float64(r) }

// factorHeatmap colours every sub-score, one row per dimension.
func factorHeatmap(in Input) (*plot.Plot, error) {
	dims := in.Assessment.Dimensions
	depth := maxFactors(dims)
	if depth == 0 {
		return nil, fmt.Errorf("%w: no sub-scores", ErrNoData)
	}
	grid := factorGrid{z: make([][]float64, len(dims))}
	labels := plotter.XYLabels{}
	names := make([]string, len(dims))
	for r, d := range dims {
		names[r] = d.Name
		row := make([]float64, depth)
		for c := range row {
			row[c] = math.NaN()
		}
		for c, f := range d.Factors {
			row[c] = f.Score
			label := fmt.Sprintf("%s\n%.0f", f.Name, f.Score)
			if f.Defaulted {
				label += "*"
			}
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			labels.Labels = append(labels.Labels, label)
		}
		grid.z[r] = row
	}

	pal := moreland.SmoothGreenRed()
	pal.SetMin(0)
	pal.SetMax(100)
	hm := plotter.NewHeatMap(grid, pal.Palette(32))
	hm.Min, hm.Max = 0, 100
	hm.NaN = color.White

	p := plot.New()
	title(p, in.Assessment, "sub-factor scores (* = default)")
	p.HideX()
	p.Add(hm)
	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].XAlign = draw.XCenter
		lbl.TextStyle[i].YAlign = draw.YCenter
		lbl.TextStyle[i].Font.Size = vg.Points(7)
	}
	p.Add(lbl)
	p.NominalY(names...)
	return p, nil
}

// stockPrice draws the closing price with the annotated events.
func stockPrice(in Input) (*plot.Plot, error) {
	prices := sortedByDate(in.Prices)
	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: %d prices", ErrNoData, len(prices))
	}
	p := plot.New()
	title(p, in.Assessment, "closing price")
	p.Y.Label.Text = "close"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}

	line, err := plotter.NewLine(timeXYs(prices))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	line.LineStyle.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	first, last := prices[0].Date, prices[len(prices)-1].Date
	marks := plotter.XYLabels{}
	for _, e := range in.Events {
		if e.Date.Before(first) || e.Date.After(last) {
			continue
		}
		marks.XYs = append(marks.XYs, plotter.XY{X: float64(e.Date.Unix()), Y: closeOn(prices, e.Date)})
		marks.Labels = append(marks.Labels, e.Label)
	}
	if len(marks.XYs) > 0 {
		dots, err := plotter.NewScatter(marks.XYs)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		dots.GlyphStyle.Color = alertColor
		dots.GlyphStyle.Shape = draw.CircleGlyph{}
		dots.GlyphStyle.Radius = vg.Points(3)
		lbl, err := plotter.NewLabels(marks)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		for i := range lbl.TextStyle {
			lbl.TextStyle[i].Font.Size = vg.Points(7)
			lbl.TextStyle[i].Rotation = math.Pi / 6
		}
		lbl.Offset = vg.Point{X: vg.Points(3), Y: vg.Points(3)}
		p.Add(dots, lbl)
	}
	return p, nil
}

// gscpiSeries draws the supply chain pressure index against its zero line.
func gscpiSeries(in Input) (*plot.Plot, error) {
	obs := sortedByDate(in.GSCPI)
	if len(obs) < 2 {
		return nil, fmt.Errorf("%w: %d GSCPI values", ErrNoData, len(obs))
	}
	p := plot.New()
	p.Title.Text = "Global Supply Chain Pressure Index"
	p.Y.Label.Text = "std. deviations from average"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006"}

	line, err := plotter.NewLine(timeXYs(obs))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	line.LineStyle.Color = plotutil.Color(1)
	line.LineStyle.Width = vg.Points(1.5)
	zero, err := plotter.NewLine(plotter.XYs{
		{X: float64(obs[0].Date.Unix()), Y: 0},
		{X: float64(obs[len(obs)-1].Date.Unix()), Y: 0},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	zero.LineStyle = draw.LineStyle{Color: gridColor, Width: vg.Points(0.5), Dashes: []vg.Length{vg.Points(3), vg.Points(3)}}
	p.Add(zero, line)
	return p, nil
}

// competitorMargins groups gross and net margin bars per competitor.
func competitorMargins(in Input) (*plot.Plot, error) {
	comps := in.Competitors
	if len(comps) == 0 {
		return nil, fmt.Errorf("%w: no competitors", ErrNoData)
	}
	gross := make(plotter.Values, len(comps))
	net := make(plotter.Values, len(comps))
	names := make([]string, len(comps))
	for i, c := range comps {
		gross[i], net[i], names[i] = c.GrossMargin, c.NetMargin, c.Name
	}
	width := vg.Points(18)
	p := plot.New()
	p.Title.Text = "Competitor margins (%)"
	p.Y.Label.Text = "percent"
	for i, series := range []struct {
		name string
		vals plotter.Values
	}{{"gross margin", gross}, {"net margin", net}} {
		bars, err := plotter.NewBarChart(series.vals, width)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = vg.Length(float64(i)-0.5) * width
		p.Add(bars)
		p.Legend.Add(series.name, bars)
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.NominalX(names...)
	return p, nil
}

func maxFactors(dims []scoring.DimensionResult) int {
	n := 0
	for _, d := range dims {
		if len(d.Factors) > n {
			n = len(d.Factors)
		}
	}
	return n
}

func sortedByDate(obs []model.Observation) []model.Observation {
	out := make([]model.Observation, 0, len(obs))
	for _, o := range obs {
		if !math.IsNaN(o.Value) && !math.IsInf(o.Value, 0) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func timeXYs(obs []model.Observation) plotter.XYs {
	xys := make(plotter.XYs, len(obs))
	for i, o := range obs {
		xys[i] = plotter.XY{X: float64(o.Date.Unix()), Y: o.Value}
	}
	return xys
}

// closeOn returns the last close on or before day.
func closeOn(prices []model.Observation, day time.Time) float64 {
	v := prices[0].Value
	for _, o := range prices {
		if o.Date.After(day) {
			break
		}
		v = o.Value
	}
	return v
}
