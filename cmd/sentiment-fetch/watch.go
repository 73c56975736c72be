package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/sentiment-fetch/internal/app"
	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/logging"
	"github.com/Sternrassler/sentiment-fetch/pkg/report"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	watchSchedule string
	watchCount    int
	watchOffline  bool
	watchNow      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <query>",
	Short: "Re-run an analysis on a schedule",
	Long: `Run the analysis for a query on a cron schedule until interrupted.

The schedule accepts standard five-field cron expressions and descriptors
such as "@hourly" or "@every 15m". A run that is still in progress when the
next one is due is skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule (default from config, @every 15m)")
	watchCmd.Flags().IntVarP(&watchCount, "count", "n", DefaultCount, "number of posts to analyze per run")
	watchCmd.Flags().BoolVar(&watchOffline, "offline", false, "analyze synthetic posts instead of live search results")
	watchCmd.Flags().BoolVar(&watchNow, "now", true, "run once immediately before the first scheduled run")
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchCount <= 0 {
		return withExitCode(ExitConfigError, fmt.Errorf("--count must be >= 1 (got %d)", watchCount))
	}
	schedule := watchSchedule
	if schedule == "" {
		schedule = cfg.Watch.Schedule
	}

	ctx := cmd.Context()
	logger := logging.NewLogger("watch")
	printer := report.NewPrinter(cmd.OutOrStdout(), !colorsEnabled())

	runner, cleanup, err := app.New(ctx, cfg, app.Options{
		OnWait: func(n fetch.WaitNotice) {
			printer.Warn("%s", report.WaitMessage(n))
		},
	})
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer cleanup()

	query := cfg.Query(args[0])
	job := func() { watchRun(ctx, runner, printer, query, watchCount, watchOffline) }

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})))
	if _, err := c.AddFunc(schedule, job); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("invalid schedule %q: %w", schedule, err))
	}

	logger.Info().
		Str("query", query.Expression()).
		Str("schedule", schedule).
		Msg("Watch started")

	if watchNow {
		job()
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	logger.Info().Msg("Watch stopped")
	return nil
}

// watchRun performs one scheduled analysis. Failures are reported and the
// schedule continues.
func watchRun(ctx context.Context, runner *app.Runner, printer *report.Printer, query fetch.Query, count int, offline bool) {
	if ctx.Err() != nil {
		return
	}

	rep, err := runner.Run(ctx, query, count, offline)
	if rep == nil {
		printer.Error("Run failed: %v", err)
		return
	}

	printer.Section(fmt.Sprintf("%s  %s", rep.Started.Format("2006-01-02 15:04:05"), rep.Query))
	printer.Outcome(rep.Fetch, err)
	if err != nil || rep.Empty {
		return
	}
	printer.Distribution(rep.Distribution)
}
