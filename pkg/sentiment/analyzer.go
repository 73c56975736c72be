package sentiment

import (
	"context"
	"math"

	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of records classified in parallel.
const DefaultConcurrency = 4

// Analysis is the classification of one record.
type Analysis struct {
	Record    fetch.Record `json:"record"`
	Sentiment Label        `json:"sentiment"`
	// Confidence is rounded to three decimals.
	Confidence float64 `json:"confidence"`
}

// Analyzer classifies records with bounded concurrency.
type Analyzer struct {
	classifier  Classifier
	concurrency int
	logger      zerolog.Logger

	// OnProgress, if set, is called once per classified record. It may be
	// called from several goroutines at once.
	OnProgress func()
}

// NewAnalyzer creates an analyzer. concurrency <= 0 uses DefaultConcurrency.
func NewAnalyzer(classifier Classifier, concurrency int) *Analyzer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Analyzer{
		classifier:  classifier,
		concurrency: concurrency,
		logger:      log.With().Str("component", "sentiment").Logger(),
	}
}

// Analyze classifies every record and returns the analyses in record order.
//
// A classifier failure on one record labels it unknown with zero confidence.
// Only context cancellation aborts the whole analysis.
func (a *Analyzer) Analyze(ctx context.Context, records []fetch.Record) ([]Analysis, error) {
	out := make([]Analysis, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, rec := range records {
		g.Go(func() error {
			pred, err := a.classifier.Classify(gctx, rec.Text)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				classifierErrorsTotal.Inc()
				a.logger.Error().
					Err(err).
					Str("record_id", rec.ID).
					Msg("Classification failed - labelling unknown")
				pred = Prediction{Label: LabelUnknown}
			}

			out[i] = Analysis{
				Record:     rec,
				Sentiment:  pred.Label,
				Confidence: roundConfidence(pred.Score),
			}
			classificationsTotal.WithLabelValues(string(pred.Label)).Inc()

			if a.OnProgress != nil {
				a.OnProgress()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debug().
		Int("records", len(records)).
		Msg("Analysis complete")

	return out, nil
}

func roundConfidence(score float64) float64 {
	return math.Round(score*1000) / 1000
}
