package app

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/sentiment-fetch/internal/config"
	"github.com/Sternrassler/sentiment-fetch/internal/testutil"
	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/sentiment"
	"github.com/Sternrassler/sentiment-fetch/pkg/synthetic"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource returns a fixed result.
type stubSource struct {
	result fetch.Result
	err    error
	calls  int
}

func (s *stubSource) FetchRecords(_ context.Context, _ fetch.Query, _ int) (fetch.Result, error) {
	s.calls++
	return s.result, s.err
}

func newRunner(live fetch.RecordSource) *Runner {
	return &Runner{
		Live:     live,
		Offline:  synthetic.NewSeededGenerator(3),
		Analyzer: sentiment.NewAnalyzer(sentiment.NewLexiconClassifier(), 2),
	}
}

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestRunner_Success(t *testing.T) {
	live := &stubSource{result: fetch.Result{
		Outcome: fetch.OutcomeSuccess,
		Records: []fetch.Record{
			{ID: "1", Text: "I love this"},
			{ID: "2", Text: "terrible and boring"},
			{ID: "3", Text: "it exists"},
		},
		Pages: 1,
	}}

	report, err := newRunner(live).Run(context.Background(), fetch.Query{Text: "go"}, 3, false)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "success", report.Outcome)
	assert.False(t, report.Empty)
	require.Len(t, report.Analyses, 3)
	assert.Equal(t, sentiment.LabelPositive, report.Analyses[0].Sentiment)
	assert.Equal(t, sentiment.LabelNegative, report.Analyses[1].Sentiment)
	assert.Equal(t, sentiment.LabelNeutral, report.Analyses[2].Sentiment)
	assert.Equal(t, 3, report.Distribution.Total)
}

func TestRunner_Empty(t *testing.T) {
	live := &stubSource{result: fetch.Result{Outcome: fetch.OutcomeEmpty, Pages: 1}}

	report, err := newRunner(live).Run(context.Background(), fetch.Query{Text: "nothing"}, 10, false)
	require.NoError(t, err)
	assert.True(t, report.Empty)
	assert.Equal(t, "empty", report.Outcome)
	assert.Empty(t, report.Analyses)
}

func TestRunner_FetchFailure(t *testing.T) {
	fetchErr := &fetch.FetchError{Kind: fetch.KindRateLimitExhausted, Attempts: 3, Err: fetch.ErrRetryExhausted}
	live := &stubSource{
		result: fetch.Result{Outcome: fetch.OutcomeRateLimitExhausted, Attempts: 3},
		err:    fetchErr,
	}

	report, err := newRunner(live).Run(context.Background(), fetch.Query{Text: "go"}, 10, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetch.ErrRetryExhausted)
	require.NotNil(t, report)
	assert.Equal(t, "rate_limit_exhausted", report.Outcome)
	assert.Equal(t, 3, report.Attempts)
	assert.Empty(t, report.Analyses)
}

func TestRunner_InvalidTarget(t *testing.T) {
	live := &stubSource{err: fetch.ErrInvalidTarget}

	report, err := newRunner(live).Run(context.Background(), fetch.Query{Text: "go"}, 0, false)
	assert.ErrorIs(t, err, fetch.ErrInvalidTarget)
	assert.Nil(t, report)
}

func TestRunner_Offline(t *testing.T) {
	live := &stubSource{}

	report, err := newRunner(live).Run(context.Background(), fetch.Query{Text: "technology"}, 12, true)
	require.NoError(t, err)
	assert.Zero(t, live.calls, "offline runs must not touch the live source")
	assert.True(t, report.Offline)
	assert.Len(t, report.Analyses, 12)
}

func TestRunner_LiveUnavailable(t *testing.T) {
	_, err := newRunner(nil).Run(context.Background(), fetch.Query{Text: "go"}, 5, false)
	assert.ErrorIs(t, err, ErrLiveUnavailable)
}

func TestNew_OfflineOnlyWithoutToken(t *testing.T) {
	cfg := loadDefaults(t)

	runner, cleanup, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, runner.Live)
	assert.NotNil(t, runner.Offline)
}

func TestNew_LiveWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetSequence(
		testutil.NewRateLimitResponse(),
		testutil.NewHealthyResponse(testutil.MakeTweets(0, 10), ""),
	)

	cfg := loadDefaults(t)
	cfg.Search.BearerToken = "token"
	cfg.Search.BaseURL = mock.URL()
	cfg.Search.RequestsPerSecond = 100
	cfg.Retry.Wait = 10 * time.Millisecond
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.CacheTTL = 0

	var notices []fetch.WaitNotice
	runner, cleanup, err := New(context.Background(), cfg, Options{
		OnWait: func(n fetch.WaitNotice) {
			notices = append(notices, n)
			// The 429 also marked the quota exhausted in Redis; clear it so the retry is sent.
			mr.FlushAll()
		},
	})
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, runner.Live)

	report, err := runner.Run(context.Background(), cfg.Query("golang"), 10, false)
	require.NoError(t, err)
	assert.Len(t, report.Analyses, 10)
	assert.Equal(t, 1, report.Attempts)
	require.Len(t, notices, 1)
	assert.Equal(t, 1, notices[0].Attempt)
	assert.Equal(t, 3, notices[0].Ceiling)
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Search.BearerToken = "token"
	cfg.Redis.Addr = "127.0.0.1:1"

	_, cleanup, err := New(context.Background(), cfg, Options{})
	defer cleanup()
	assert.ErrorContains(t, err, "connect to redis")
}

func TestNewClassifier(t *testing.T) {
	cfg := loadDefaults(t)

	c, err := NewClassifier(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sentiment.LexiconClassifier{}, c)

	cfg.Classifier.Backend = config.BackendOpenAI
	cfg.Classifier.OpenAI.APIKey = "sk-test"
	c, err = NewClassifier(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sentiment.OpenAIClassifier{}, c)

	cfg.Classifier.Backend = "nope"
	_, err = NewClassifier(cfg)
	assert.Error(t, err)
}
