package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/riskdiag/internal/config"
	"github.com/okian/riskdiag/pkg/logger"
)

// cronLogger routes scheduler messages through the process logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(context.Background(), msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(context.Background(), msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}

// newScheduler registers run on spec. A tick that fires while the previous
// run is still going is skipped, so runs never overlap on the data directory.
func newScheduler(ctx context.Context, spec string, log logger.Logger, run func(context.Context) error) (*cron.Cron, cron.EntryID, error) {
	cl := cronLogger{log: log}
	sched := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := sched.AddFunc(spec, func() {
		if err := run(ctx); err != nil {
			log.Error(ctx, "scheduled run failed", logger.Error(err))
		}
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: schedule %q: %w", config.ErrInvalidConfig, spec, err)
	}
	return sched, id, nil
}
