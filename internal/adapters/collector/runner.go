package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/riskdiag/internal/adapters/repository"
	"github.com/okian/riskdiag/internal/domain/dedupe"
	"github.com/okian/riskdiag/pkg/logger"
	"github.com/okian/riskdiag/pkg/metrics"
)

// Result statuses.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// Result is the outcome of one source.
type Result struct {
	Source     string   `json:"source"`
	Status     string   `json:"status"`
	Records    int      `json:"records"`
	Files      []string `json:"files,omitempty"`
	Error      string   `json:"error,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// Report is the outcome of one collection run, persisted as collection_report.json.
type Report struct {
	RunID      string    `json:"run_id"`
	Company    string    `json:"company"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Counts returns the number of results per status.
func (r Report) Counts() map[string]int {
	out := map[string]int{}
	for _, res := range r.Results {
		out[res.Status]++
	}
	return out
}

// Result returns the result of the named source.
func (r Report) Result(source string) (Result, bool) {
	for _, res := range r.Results {
		if res.Source == source {
			return res, true
		}
	}
	return Result{}, false
}

// Runner executes sources one after another and persists what they return.
// A failing source never stops the run.
type Runner struct {
	sources   []Source
	store     repository.Store
	fallbacks map[string]Dataset
	log       logger.Logger
	now       func() time.Time
}

// RunnerOption applies a configuration option to the Runner.
type RunnerOption func(*Runner)

// WithFallbacks sets the curated datasets substituted for failed sources.
func WithFallbacks(fb map[string]Dataset) RunnerOption {
	return func(r *Runner) {
		if fb != nil {
			r.fallbacks = fb
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock sets the time source used for report timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a runner writing into store.
func NewRunner(store repository.Store, sources []Source, opts ...RunnerOption) *Runner {
	r := &Runner{
		sources:   sources,
		store:     store,
		fallbacks: map[string]Dataset{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run collects every source and writes collection_report.json. The returned
// error is non-nil only when the context is cancelled or the report cannot be written.
func (r *Runner) Run(ctx context.Context, q Query) (Report, error) {
	if r.log == nil {
		r.log = logger.Named("collector")
	}
	rep := Report{RunID: uuid.NewString(), Company: q.Company, StartedAt: r.now()}
	if q.AsOf.IsZero() {
		q.AsOf = rep.StartedAt
	}
	r.log.Info(ctx, "collection started",
		logger.String("run_id", rep.RunID),
		logger.String("company", q.Company),
		logger.Int("sources", len(r.sources)),
	)

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := r.collect(ctx, src, q)
		metrics.RecordCollectorResult(res.Source, res.Status, float64(res.DurationMS), res.Records)
		rep.Results = append(rep.Results, res)
	}

	rep.FinishedAt = r.now()
	if err := r.store.WriteJSON(ctx, FileReport, rep); err != nil {
		return rep, fmt.Errorf("write collection report: %w", err)
	}
	counts := rep.Counts()
	r.log.Info(ctx, "collection finished",
		logger.String("run_id", rep.RunID),
		logger.Int(StatusSuccess, counts[StatusSuccess]),
		logger.Int(StatusFallback, counts[StatusFallback]),
		logger.Int(StatusFailed, counts[StatusFailed]),
		logger.Int(StatusSkipped, counts[StatusSkipped]),
	)
	return rep, nil
}

func (r *Runner) collect(ctx context.Context, src Source, q Query) Result {
	start := time.Now()
	res := Result{Source: src.Name()}

	ds, err := src.Collect(ctx, q)
	if err == nil {
		var n int
		if n, err = r.persist(ctx, ds); err == nil {
			res.Status = StatusSuccess
			res.Records = n
			res.Files = ds.Files()
			res.Notes = ds.Notes
			for _, note := range ds.Notes {
				r.log.Warn(ctx, "source note", logger.String("source", res.Source), logger.String("note", note))
			}
			r.log.Info(ctx, "source collected",
				logger.String("source", res.Source),
				logger.Int("records", res.Records),
				logger.Strings("files", res.Files),
			)
			res.DurationMS = time.Since(start).Milliseconds()
			return res
		}
	}
	res.Error = err.Error()

	if fb, ok := r.fallbacks[res.Source]; ok {
		if n, werr := r.persist(ctx, fb); werr == nil {
			res.Status = StatusFallback
			res.Records = n
			res.Files = fb.Files()
			r.log.Warn(ctx, "source replaced by curated snapshot",
				logger.String("source", res.Source),
				logger.Error(err),
			)
			res.DurationMS = time.Since(start).Milliseconds()
			return res
		}
	}

	// leave no stale output behind so the scorer falls back to defaults
	for _, name := range src.Outputs(q) {
		if rerr := r.store.Remove(ctx, name); rerr != nil {
			r.log.Warn(ctx, "remove stale output", logger.String("file", name), logger.Error(rerr))
		}
	}
	if errors.Is(err, ErrMissingKey) || errors.Is(err, ErrNotApplicable) {
		res.Status = StatusSkipped
		r.log.Info(ctx, "source skipped", logger.String("source", res.Source), logger.String("reason", res.Error))
	} else {
		res.Status = StatusFailed
		r.log.Warn(ctx, "source failed", logger.String("source", res.Source), logger.Error(err))
	}
	res.DurationMS = time.Since(start).Milliseconds()
	return res
}

// persist writes every file of ds and returns the record count after dedupe.
func (r *Runner) persist(ctx context.Context, ds Dataset) (int, error) {
	n := 0
	for _, s := range ds.Series {
		obs := dedupe.Observations(s.Observations)
		if err := r.store.WriteObservations(ctx, s.Name, obs); err != nil {
			return 0, err
		}
		n += len(obs)
	}
	for _, doc := range ds.Documents {
		if err := r.store.WriteJSON(ctx, doc.Name, doc.Value); err != nil {
			return 0, err
		}
		n += doc.Records
	}
	return n, nil
}
