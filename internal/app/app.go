// Package app wires configuration into a runnable fetch-and-classify pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/sentiment-fetch/internal/config"
	"github.com/Sternrassler/sentiment-fetch/pkg/client"
	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/logging"
	"github.com/Sternrassler/sentiment-fetch/pkg/sentiment"
	"github.com/Sternrassler/sentiment-fetch/pkg/synthetic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

// ErrLiveUnavailable is returned for live runs when no bearer token is configured.
var ErrLiveUnavailable = errors.New("live search unavailable: no bearer token configured (use offline mode)")

// Report is the outcome of one run.
type Report struct {
	RunID    string    `json:"run_id"`
	Query    string    `json:"query"`
	Target   int       `json:"target"`
	Offline  bool      `json:"offline"`
	Outcome  string    `json:"outcome"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`

	// Empty is true when the query matched nothing.
	Empty bool `json:"empty"`

	Pages    int    `json:"pages"`
	Attempts int    `json:"rate_limit_attempts"`
	Waited   string `json:"rate_limit_waited"`

	Analyses     []sentiment.Analysis   `json:"analyses"`
	Distribution sentiment.Distribution `json:"distribution"`

	// Fetch holds the raw fetch result for callers that need it.
	Fetch fetch.Result `json:"-"`
}

// Runner fetches records from the selected source and classifies them.
type Runner struct {
	Live     fetch.RecordSource
	Offline  fetch.RecordSource
	Analyzer *sentiment.Analyzer
}

// Run performs one analysis of query.
//
// The report is always non-nil once the target is valid. For fetch failures
// the returned error is the *fetch.FetchError and the report carries the
// outcome with no analyses.
func (r *Runner) Run(ctx context.Context, query fetch.Query, target int, offline bool) (*Report, error) {
	runID := xid.New().String()
	logger := logging.NewRunLogger("app", runID)

	source := r.Live
	if offline {
		source = r.Offline
	}
	if source == nil {
		return nil, ErrLiveUnavailable
	}

	report := &Report{
		RunID:   runID,
		Query:   query.Expression(),
		Target:  target,
		Offline: offline,
		Started: time.Now(),
	}

	logger.Info().
		Str("query", report.Query).
		Int("target", target).
		Bool("offline", offline).
		Msg("Run started")

	result, err := source.FetchRecords(ctx, query, target)
	report.Fetch = result
	report.Outcome = result.Outcome.String()
	report.Pages = result.Pages
	report.Attempts = result.Attempts
	report.Waited = result.Waited.String()

	if err != nil {
		if errors.Is(err, fetch.ErrInvalidTarget) {
			return nil, err
		}
		report.Duration = time.Since(report.Started).String()
		logger.Error().
			Err(err).
			Str("outcome", report.Outcome).
			Msg("Run failed")
		return report, err
	}

	if result.Outcome == fetch.OutcomeEmpty {
		report.Empty = true
		report.Duration = time.Since(report.Started).String()
		logger.Info().Msg("Run finished with no records")
		return report, nil
	}

	analyses, err := r.Analyzer.Analyze(ctx, result.Records)
	if err != nil {
		return report, fmt.Errorf("analyze: %w", err)
	}
	report.Analyses = analyses
	report.Distribution = sentiment.Summarize(analyses)
	report.Duration = time.Since(report.Started).String()

	logger.Info().
		Int("fetched", len(result.Records)).
		Int("pages", result.Pages).
		Str("duration", report.Duration).
		Msg("Run complete")

	return report, nil
}

// Options customise the wiring done by New.
type Options struct {
	// OnWait is called before each rate-limit cool-down of a live fetch.
	OnWait func(fetch.WaitNotice)
}

// New builds a Runner from configuration. The returned cleanup closes any
// connections opened here.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runner, func(), error) {
	cleanup := func() {}

	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, cleanup, err
	}

	runner := &Runner{
		Offline:  synthetic.NewGenerator(),
		Analyzer: sentiment.NewAnalyzer(classifier, cfg.Classifier.Concurrency),
	}

	if cfg.Search.BearerToken == "" {
		return runner, cleanup, nil
	}

	var redisClient *redis.Client
	if redisOpts := cfg.RedisOptions(); redisOpts != nil {
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, cleanup, fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
		}
		cleanup = func() { redisClient.Close() }
	}

	searchClient, err := client.New(cfg.ClientConfig(redisClient))
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("create search client: %w", err)
	}

	fetchCfg := cfg.FetchConfig()
	fetchCfg.OnWait = opts.OnWait
	runner.Live = fetch.NewOrchestrator(
		fetch.NewSearchPageFetcher(searchClient, cfg.Search.MaxPageSize),
		fetchCfg,
	)

	return runner, cleanup, nil
}

// NewClassifier creates the configured classifier backend.
func NewClassifier(cfg *config.Config) (sentiment.Classifier, error) {
	switch cfg.Classifier.Backend {
	case config.BackendOpenAI:
		c, err := sentiment.NewOpenAIClassifier(sentiment.OpenAIConfig{
			APIKey:     cfg.Classifier.OpenAI.APIKey,
			BaseURL:    cfg.Classifier.OpenAI.BaseURL,
			Model:      cfg.Classifier.OpenAI.Model,
			MaxRetries: cfg.Classifier.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai classifier: %w", err)
		}
		return c, nil
	case config.BackendLexicon, "":
		return sentiment.NewLexiconClassifier(), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend)
	}
}
