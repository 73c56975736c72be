package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Sternrassler/sentiment-fetch/internal/app"
	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// DefaultCount is the number of records analyzed when --count is not given.
const DefaultCount = 50

var (
	analyzeCount      int
	analyzeOffline    bool
	analyzeClassifier string
	analyzeJSON       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Fetch posts for a query and print their sentiment distribution",
	Long: `Fetch up to --count recent posts matching the query and classify each.

When the provider rate limit is hit the fetch waits and retries up to the
configured ceiling. If the ceiling is reached nothing is analyzed and the
command exits with code 3. Use --offline to analyze synthetic posts instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeCount, "count", "n", DefaultCount, "number of posts to analyze")
	analyzeCmd.Flags().BoolVar(&analyzeOffline, "offline", false, "analyze synthetic posts instead of live search results")
	analyzeCmd.Flags().StringVar(&analyzeClassifier, "classifier", "", "classifier backend (lexicon or openai)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the report as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeCount <= 0 {
		return withExitCode(ExitConfigError, fmt.Errorf("--count must be >= 1 (got %d)", analyzeCount))
	}
	if analyzeClassifier != "" {
		cfg.Classifier.Backend = analyzeClassifier
		if err := cfg.Validate(); err != nil {
			return withExitCode(ExitConfigError, err)
		}
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	printer := report.NewPrinter(out, !colorsEnabled())

	runner, cleanup, err := app.New(ctx, cfg, app.Options{
		OnWait: func(n fetch.WaitNotice) {
			printer.Warn("%s", report.WaitMessage(n))
		},
	})
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer cleanup()

	var bar *progressbar.ProgressBar
	if cfg.Output.Progress && !analyzeJSON {
		bar = newProgressBar(cmd.ErrOrStderr(), analyzeCount)
		runner.Analyzer.OnProgress = func() { _ = bar.Add(1) }
	}

	rep, err := runner.Run(ctx, cfg.Query(args[0]), analyzeCount, analyzeOffline)
	if bar != nil {
		_ = bar.Finish()
	}
	if rep == nil {
		return withExitCode(ExitConfigError, err)
	}

	if analyzeJSON {
		if jerr := writeReportJSON(out, rep); jerr != nil {
			return jerr
		}
		return err
	}

	printer.Outcome(rep.Fetch, err)
	if err != nil || rep.Empty {
		return err
	}
	return printReport(printer, rep)
}

func newProgressBar(w io.Writer, max int) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionSetWidth(report.BarWidth),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// printReport renders the per-record table and the distribution.
func printReport(printer *report.Printer, rep *app.Report) error {
	printer.Section("Analysis")
	if err := printer.Table(rep.Analyses); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	printer.Section("Sentiment Distribution")
	printer.Distribution(rep.Distribution)
	return nil
}

func writeReportJSON(w io.Writer, rep *app.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
