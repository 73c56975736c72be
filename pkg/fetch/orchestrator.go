package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMaxPages bounds the number of pages one fetch may consume.
const DefaultMaxPages = 1000

// Outcome is the terminal state of a FetchRecords call.
type Outcome int

const (
	OutcomeUnknown Outcome = iota

	// OutcomeSuccess means Records holds at least one record.
	OutcomeSuccess

	// OutcomeEmpty means the query legitimately matched nothing.
	OutcomeEmpty

	// OutcomeRateLimitExhausted means the retry ceiling was reached.
	OutcomeRateLimitExhausted

	// OutcomeTransportFailure means a page request failed.
	OutcomeTransportFailure

	// OutcomeCanceled means the context was canceled or timed out.
	OutcomeCanceled
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeRateLimitExhausted:
		return "rate_limit_exhausted"
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the single terminal result of a FetchRecords call.
type Result struct {
	Outcome Outcome

	// Records is only populated for OutcomeSuccess.
	Records []Record

	// Attempts is the number of rate-limit signals received.
	Attempts int

	// Pages is the number of pages successfully fetched.
	Pages int

	// Waited is the total time spent in rate-limit cool-downs.
	Waited time.Duration
}

// WaitNotice is emitted before every rate-limit cool-down.
type WaitNotice struct {
	Query   Query
	Attempt int
	Ceiling int
	Wait    time.Duration
}

// Config holds orchestrator configuration.
type Config struct {
	Retry RetryConfig

	// MaxPages is the page budget of one fetch.
	MaxPages int

	// Sleeper performs rate-limit cool-downs (default: SleepContext).
	Sleeper Sleeper

	// OnWait, if set, is called before each cool-down.
	OnWait func(WaitNotice)
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Retry:    DefaultRetryConfig(),
		MaxPages: DefaultMaxPages,
		Sleeper:  SleepContext,
	}
}

// Orchestrator drives pagination, rate-limit retries and accumulation.
// It holds no per-call state and may serve concurrent FetchRecords calls.
type Orchestrator struct {
	fetcher   PageFetcher
	scheduler *RetryScheduler
	config    Config
	logger    zerolog.Logger
}

// NewOrchestrator creates an orchestrator on top of a page fetcher.
func NewOrchestrator(fetcher PageFetcher, config Config) *Orchestrator {
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultMaxPages
	}
	if config.Sleeper == nil {
		config.Sleeper = SleepContext
	}

	return &Orchestrator{
		fetcher:   fetcher,
		scheduler: NewRetryScheduler(config.Retry),
		config:    config,
		logger:    log.With().Str("component", "fetch").Logger(),
	}
}

// FetchRecords fetches up to target records for query.
//
// The returned error is nil for OutcomeSuccess and OutcomeEmpty, and a
// *FetchError otherwise. Records gathered before a failure are discarded.
func (o *Orchestrator) FetchRecords(ctx context.Context, query Query, target int) (Result, error) {
	if target <= 0 {
		return Result{}, ErrInvalidTarget
	}

	start := time.Now()
	logger := o.logger.With().
		Str("query", query.Expression()).
		Int("target", target).
		Logger()

	acc := NewAccumulator(target)
	result := Result{}

	for {
		if result.Pages >= o.config.MaxPages {
			logger.Warn().
				Int("pages", result.Pages).
				Int("fetched", acc.Len()).
				Msg("Page budget exhausted - stopping pagination")
			return o.finish(logger, acc, result, start)
		}

		if err := ctx.Err(); err != nil {
			return o.fail(logger, query, result, KindCanceled, err)
		}

		pr := o.fetcher.FetchPage(ctx, query, acc.Remaining(), acc.Token())
		fetchPagesTotal.WithLabelValues(pr.Outcome.String()).Inc()

		switch pr.Outcome {
		case PageOK:
			result.Pages++
			status := acc.Accept(pr.Page)

			logger.Debug().
				Int("page", result.Pages).
				Int("page_records", len(pr.Page.Records)).
				Int("fetched", acc.Len()).
				Str("status", status.String()).
				Msg("Page accepted")

			if status != Continue {
				return o.finish(logger, acc, result, start)
			}

		case PageRateLimited:
			result.Attempts++
			decision := o.scheduler.OnRateLimited(result.Attempts)
			if decision.Action == ActionGiveUp {
				return o.fail(logger, query, result, KindRateLimitExhausted, ErrRetryExhausted)
			}

			logger.Warn().
				Int("attempt", result.Attempts).
				Int("max_attempts", o.scheduler.Ceiling()).
				Dur("wait", decision.Wait).
				Msg("Rate limit reached - waiting before retry")

			if o.config.OnWait != nil {
				o.config.OnWait(WaitNotice{
					Query:   query,
					Attempt: result.Attempts,
					Ceiling: o.scheduler.Ceiling(),
					Wait:    decision.Wait,
				})
			}

			fetchRateLimitWaitsTotal.Inc()
			fetchRateLimitWaitSeconds.Observe(decision.Wait.Seconds())

			if err := o.config.Sleeper(ctx, decision.Wait); err != nil {
				return o.fail(logger, query, result, KindCanceled, err)
			}
			result.Waited += decision.Wait

		default:
			if ctx.Err() != nil {
				return o.fail(logger, query, result, KindCanceled, errors.Join(ctx.Err(), pr.Err))
			}
			return o.fail(logger, query, result, KindTransport, pr.Err)
		}
	}
}

func (o *Orchestrator) finish(logger zerolog.Logger, acc *Accumulator, result Result, start time.Time) (Result, error) {
	if acc.IsEmpty() {
		result.Outcome = OutcomeEmpty
		fetchResultsTotal.WithLabelValues(result.Outcome.String()).Inc()
		logger.Info().
			Int("pages", result.Pages).
			Msg("No records found")
		return result, nil
	}

	result.Outcome = OutcomeSuccess
	result.Records = acc.Records()
	fetchResultsTotal.WithLabelValues(result.Outcome.String()).Inc()
	fetchRecordsTotal.Add(float64(acc.Len()))

	logger.Info().
		Int("fetched", acc.Len()).
		Int("pages", result.Pages).
		Int("dropped", acc.Dropped).
		Int("rate_limit_attempts", result.Attempts).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

func (o *Orchestrator) fail(logger zerolog.Logger, query Query, result Result, kind ErrorKind, cause error) (Result, error) {
	switch kind {
	case KindRateLimitExhausted:
		result.Outcome = OutcomeRateLimitExhausted
	case KindCanceled:
		result.Outcome = OutcomeCanceled
	default:
		result.Outcome = OutcomeTransportFailure
	}
	fetchResultsTotal.WithLabelValues(result.Outcome.String()).Inc()

	logger.Error().
		Err(cause).
		Str("error_class", string(kind)).
		Int("attempts", result.Attempts).
		Int("pages", result.Pages).
		Msg("Fetch failed")

	return result, &FetchError{
		Kind:     kind,
		Query:    query.Expression(),
		Attempts: result.Attempts,
		Err:      cause,
	}
}
