// Package service runs the riskdiag pipeline: collect, score, render.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/riskdiag/internal/adapters/collector"
	"github.com/okian/riskdiag/internal/adapters/render"
	"github.com/okian/riskdiag/internal/adapters/repository"
	"github.com/okian/riskdiag/internal/config"
	"github.com/okian/riskdiag/internal/domain/facts"
	"github.com/okian/riskdiag/internal/domain/model"
	"github.com/okian/riskdiag/internal/domain/scoring"
	"github.com/okian/riskdiag/pkg/logger"
	"github.com/okian/riskdiag/pkg/metrics"
)

// FileAssessment is the scorer output under the data directory.
const FileAssessment = "risk_assessment.json"

// Pipeline stage names, used for logs and metrics.
const (
	StageCollect = "collect"
	StageScore   = "score"
	StageRender  = "render"
)

// HistoryStore records assessments between runs.
type HistoryStore interface {
	Append(ctx context.Context, a model.Assessment) (*model.Change, error)
	List(ctx context.Context, company string, limit int) ([]repository.Record, error)
}

// Summary is the outcome of a full run.
type Summary struct {
	Collection collector.Report
	Assessment model.Assessment
	Charts     []render.Result
}

// Service wires configuration to the collector, scorer and renderer.
type Service struct {
	cfg       *config.Config
	store     repository.Store
	history   HistoryStore
	facts     *facts.Facts
	endpoints collector.Endpoints
	charts    []string
	now       func() time.Time
	logger    logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the file store rooted at the configured data directory.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithHistory sets the assessment history. Without it history is disabled.
func WithHistory(h HistoryStore) Option {
	return func(s *Service) {
		s.history = h
	}
}

// WithFacts supplies the curated facts instead of reading the facts file.
func WithFacts(f *facts.Facts) Option {
	return func(s *Service) {
		s.facts = f
	}
}

// WithEndpoints points the collectors at other upstreams.
func WithEndpoints(ep collector.Endpoints) Option {
	return func(s *Service) {
		s.endpoints = ep
	}
}

// WithCharts restricts rendering to the named charts.
func WithCharts(names ...string) Option {
	return func(s *Service) {
		s.charts = names
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service for cfg.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	s := &Service{
		cfg:       cfg,
		endpoints: collector.DefaultEndpoints(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("pipeline")
	}
	if s.store == nil {
		store, err := repository.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	return s, nil
}

// Store returns the data directory store.
func (s *Service) Store() repository.Store { return s.store }

// Collect runs every configured source and writes the collection report.
func (s *Service) Collect(ctx context.Context) (collector.Report, error) {
	defer s.stage(StageCollect)()

	f, err := s.loadFacts(ctx)
	if err != nil {
		return collector.Report{}, err
	}
	snaps := collector.Snapshots{}
	if f != nil {
		snaps = collector.Snapshots{News: f.News, Reviews: f.Reviews, Shipments: f.Shipments}
	}

	client := collector.NewClient(
		collector.WithTimeout(s.cfg.HTTPTimeout()),
		collector.WithUserAgent(s.cfg.UserAgent),
		collector.WithRequestDelay(s.cfg.RequestDelay()),
	)
	sources, err := collector.Build(s.cfg.Sources, client, collector.Settings{
		Endpoints: s.endpoints,
		Keys: collector.Keys{
			FRED:    s.cfg.FREDAPIKey,
			SAM:     s.cfg.SAMAPIKey,
			Patents: s.cfg.PatentsAPIKey,
			Census:  s.cfg.CensusAPIKey,
		},
		ShipmentsURL: s.cfg.ShipmentsURL,
		Snapshots:    snaps,
	})
	if err != nil {
		return collector.Report{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	start, err := time.Parse(model.DateLayout, s.cfg.StartDate)
	if err != nil {
		return collector.Report{}, fmt.Errorf("%w: start_date: %w", ErrInvalidConfig, err)
	}
	runner := collector.NewRunner(s.store, sources,
		collector.WithFallbacks(collector.Fallbacks(snaps)),
		collector.WithLogger(s.logger.Named("collector")),
		collector.WithClock(s.now),
	)
	return runner.Run(ctx, collector.Query{
		Company:  s.cfg.Company,
		Ticker:   s.cfg.Ticker,
		CIK:      s.cfg.CIK,
		Start:    start,
		Series:   s.cfg.FREDSeries,
		Range:    s.cfg.StockRange,
		Interval: s.cfg.StockInterval,
	})
}

// Score derives metrics from the collected files and the facts, evaluates the
// configured profile and overwrites the assessment file. The run is then
// appended to history; when a previous run exists the file is rewritten with
// the change attached.
func (s *Service) Score(ctx context.Context) (model.Assessment, error) {
	defer s.stage(StageScore)()

	f, err := s.loadFacts(ctx)
	if err != nil {
		return model.Assessment{}, err
	}
	scorer, err := scoring.NewModelScorer(s.cfg.Profile, scoring.WithDimensionWeights(s.cfg.DimensionWeights))
	if err != nil {
		return model.Assessment{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	values := DeriveMetrics(ctx, s.store, f, s.logger.Named("inputs"))
	res, err := scorer.Score(ctx, values)
	if err != nil {
		return model.Assessment{}, err
	}
	a := NewAssessment(Subject{Company: s.cfg.Company, Ticker: s.cfg.Ticker}, res, values, f, s.now())

	for _, d := range a.Dimensions {
		metrics.UpdateDimensionScore(a.Profile, d.Name, d.Total)
		for _, name := range d.Defaulted {
			metrics.RecordFactorDefaulted(d.Name)
			s.logger.Debug(ctx, "factor defaulted", logger.String("dimension", d.Name), logger.String("factor", name))
		}
	}
	metrics.UpdateCompositeScore(a.Profile, a.Company, a.Composite)
	if len(a.Defaulted) > 0 {
		s.logger.Info(ctx, "factors scored from defaults", logger.Strings("factors", a.Defaulted))
	}

	if err := s.store.WriteJSON(ctx, FileAssessment, a); err != nil {
		return a, fmt.Errorf("write assessment: %w", err)
	}

	if s.history != nil {
		change, herr := s.history.Append(ctx, a)
		switch {
		case herr != nil:
			s.logger.Warn(ctx, "history append failed", logger.Error(herr))
		case change != nil:
			a.Change = change
			if err := s.store.WriteJSON(ctx, FileAssessment, a); err != nil {
				return a, fmt.Errorf("write assessment: %w", err)
			}
			metrics.UpdateScoreChange(a.Company, change.Delta)
			if change.Alert {
				s.logger.Warn(ctx, "risk score alert",
					logger.String("company", a.Company),
					logger.Float64("previous", change.PreviousScore),
					logger.Float64("current", a.Composite),
					logger.Float64("delta", change.Delta),
					logger.String("descriptor", change.Descriptor),
				)
			}
		}
	}
	s.logger.Info(ctx, "assessment written",
		logger.String("run_id", a.RunID),
		logger.String("profile", a.Profile),
		logger.Float64("composite", a.Composite),
		logger.String("level", a.Level),
	)
	return a, nil
}

// Render draws the charts from the stored assessment and series.
func (s *Service) Render(ctx context.Context) ([]render.Result, error) {
	defer s.stage(StageRender)()

	var a model.Assessment
	if err := s.store.ReadJSON(ctx, FileAssessment, &a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoAssessment
		}
		return nil, err
	}
	f, err := s.loadFacts(ctx)
	if err != nil {
		return nil, err
	}

	in := render.Input{Assessment: a}
	in.Prices = s.series(ctx, collector.FileStockPrices)
	in.GSCPI = s.series(ctx, collector.FileGSCPI)
	if f != nil {
		in.Competitors = f.Competitors
		for _, e := range f.Events {
			day, perr := time.Parse(model.DateLayout, e.Date)
			if perr != nil {
				continue
			}
			in.Events = append(in.Events, render.Event{Date: day, Label: e.Label})
		}
	}

	opts := []render.Option{render.WithLogger(s.logger.Named("render"))}
	if len(s.charts) > 0 {
		opts = append(opts, render.WithCharts(s.charts...))
	}
	r, err := render.New(s.cfg.ChartDir, opts...)
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, in), nil
}

// Run executes collect, score and render in order. A collection that ends
// early because ctx was cancelled stops the run.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	rep, err := s.Collect(ctx)
	sum.Collection = rep
	if err != nil {
		return sum, fmt.Errorf("%s: %w", StageCollect, err)
	}
	if sum.Assessment, err = s.Score(ctx); err != nil {
		return sum, fmt.Errorf("%s: %w", StageScore, err)
	}
	if sum.Charts, err = s.Render(ctx); err != nil {
		return sum, fmt.Errorf("%s: %w", StageRender, err)
	}
	metrics.MarkRunCompleted(s.now())
	if s.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
			s.logger.Warn(ctx, "metrics textfile not written", logger.Error(err))
		}
	}
	return sum, nil
}

// History returns up to limit recorded assessments for the configured company, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]repository.Record, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, s.cfg.Company, limit)
}

// loadFacts returns the injected facts, or reads the facts file afresh so a
// long-running schedule sees edits. A missing facts file is not an error;
// every curated metric then falls back to its default.
func (s *Service) loadFacts(ctx context.Context) (*facts.Facts, error) {
	if s.facts != nil {
		return s.facts, nil
	}
	f, err := facts.Load(s.cfg.FactsFile)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, facts.ErrNotFound):
		s.logger.Warn(ctx, "facts file missing; curated metrics use defaults", logger.String("path", s.cfg.FactsFile))
		return nil, nil
	default:
		return nil, err
	}
}

func (s *Service) series(ctx context.Context, name string) []model.Observation {
	obs, err := s.store.ReadObservations(ctx, name)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn(ctx, "series unreadable", logger.String("file", name), logger.Error(err))
	}
	return obs
}

func (s *Service) stage(name string) func() {
	start := time.Now()
	return func() {
		metrics.RecordStageDuration(name, time.Since(start))
	}
}
