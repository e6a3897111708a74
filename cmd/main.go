package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/riskdiag/internal/adapters/collector"
	"github.com/okian/riskdiag/internal/adapters/render"
	"github.com/okian/riskdiag/internal/adapters/repository"
	app "github.com/okian/riskdiag/internal/app"
	"github.com/okian/riskdiag/internal/config"
	"github.com/okian/riskdiag/pkg/logger"
)

const defaultHistoryLimit = 10

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by the subcommands.
type cli struct {
	configPath string
	logOut     io.Writer
	cfg        *config.Config
	log        logger.Logger
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	c := &cli{logOut: logOut}
	root := &cobra.Command{
		Use:          "riskdiag",
		Short:        "Collect public data on a company, score its risk and chart the result",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file (default $RISKDIAG_CONFIG)")

	root.AddCommand(
		c.collectCmd(),
		c.scoreCmd(),
		c.renderCmd(),
		c.runCmd(),
		c.scheduleCmd(),
		c.historyCmd(),
	)
	return root
}

// setup loads configuration and initializes logging.
func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load(ctx, c.configPath)
	if err != nil {
		return err
	}
	if err := logger.InitWithWriter(c.logOut, cfg.LogFormat); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	c.log = logger.Get()
	return nil
}

// service builds the pipeline and opens history when configured. The returned
// func releases the history database.
func (c *cli) service(opts ...app.Option) (*app.Service, func(), error) {
	closer := func() {}
	opts = append([]app.Option{app.WithLogger(c.log.Named("pipeline"))}, opts...)
	if dsn := c.cfg.HistoryDSN; dsn != "" {
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, closer, fmt.Errorf("create history dir: %w", err)
			}
		}
		h, err := repository.OpenHistory(dsn, repository.WithAlertThreshold(c.cfg.AlertThreshold))
		if err != nil {
			return nil, closer, err
		}
		closer = func() {
			if err := h.Close(); err != nil {
				c.log.Warn(context.Background(), "close history", logger.Error(err))
			}
		}
		opts = append(opts, app.WithHistory(h))
	}
	svc, err := app.New(c.cfg, opts...)
	if err != nil {
		closer()
		return nil, func() {}, err
	}
	return svc, closer, nil
}

func (c *cli) collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Fetch every configured source into the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := c.service()
			if err != nil {
				return err
			}
			defer done()
			rep, err := svc.Collect(cmd.Context())
			if err != nil {
				return err
			}
			printCollection(cmd.OutOrStdout(), rep)
			return nil
		},
	}
}

func (c *cli) scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Score the collected data and write " + app.FileAssessment,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := c.service()
			if err != nil {
				return err
			}
			defer done()
			a, err := svc.Score(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s): %.1f %s\n", a.Company, a.Profile, a.Composite, a.Level)
			for _, d := range a.Dimensions {
				fmt.Fprintf(out, "  %-14s %5.1f %s\n", d.Name, d.Total, d.Level)
			}
			if a.Change != nil {
				fmt.Fprintf(out, "change: %+.1f %s\n", a.Change.Delta, a.Change.Descriptor)
			}
			return nil
		},
	}
}

func (c *cli) renderCmd() *cobra.Command {
	var charts []string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Draw charts from the stored assessment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := c.service(app.WithCharts(charts...))
			if err != nil {
				return err
			}
			defer done()
			results, err := svc.Render(cmd.Context())
			if err != nil {
				return err
			}
			printCharts(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&charts, "charts", nil, "charts to draw (default all)")
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Collect, score and render in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := c.service()
			if err != nil {
				return err
			}
			defer done()
			sum, err := svc.Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printCollection(out, sum.Collection)
			fmt.Fprintf(out, "composite %.1f %s\n", sum.Assessment.Composite, sum.Assessment.Level)
			printCharts(out, sum.Charts)
			return nil
		},
	}
}

func (c *cli) scheduleCmd() *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Repeat run on the configured cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, done, err := c.service()
			if err != nil {
				return err
			}
			defer done()

			log := c.log.Named("schedule")
			sched, id, err := newScheduler(ctx, c.cfg.Schedule, log, func(ctx context.Context) error {
				_, err := svc.Run(ctx)
				return err
			})
			if err != nil {
				return err
			}
			if now {
				sched.Entry(id).WrappedJob.Run()
			}
			sched.Start()
			log.Info(ctx, "scheduler started", logger.String("schedule", c.cfg.Schedule))

			<-ctx.Done()
			<-sched.Stop().Done()
			log.Info(ctx, "scheduler stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "run once immediately before waiting for the schedule")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded assessments for the configured company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := c.service()
			if err != nil {
				return err
			}
			defer done()
			recs, err := svc.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tRUN\tSCORE\tLEVEL\tDELTA\tCHANGE\tALERT")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%+.1f\t%s\t%t\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.RunID, r.Composite, r.Level, r.Delta, r.Descriptor, r.Alert)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of runs to show (0 for all)")
	return cmd
}

func printCollection(out io.Writer, rep collector.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tSTATUS\tRECORDS\tMS\tERROR")
	for _, r := range rep.Results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.Source, r.Status, r.Records, r.DurationMS, r.Error)
	}
	_ = w.Flush()
}

func printCharts(out io.Writer, results []render.Result) {
	for _, r := range results {
		switch r.Status {
		case render.StatusOK:
			fmt.Fprintf(out, "chart %-22s %s\n", r.Chart, r.File)
		default:
			fmt.Fprintf(out, "chart %-22s %s: %s\n", r.Chart, r.Status, r.Error)
		}
	}
}
