package client

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/sentiment-fetch/internal/testutil"
	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates an in-memory Redis for unit tests.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// newTestClient creates a client pointed at the mock with pacing effectively disabled.
func newTestClient(t *testing.T, mock *testutil.MockSearchAPI, redisClient *redis.Client) *Client {
	t.Helper()

	cfg := DefaultConfig("test-token")
	cfg.BaseURL = mock.URL()
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	cfg.Redis = redisClient

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

func searchReq(text string, maxResults int, token string) fetch.SearchRequest {
	return fetch.SearchRequest{
		Query:      fetch.Query{Text: text, Language: "en", ExcludeRetweets: true},
		MaxResults: maxResults,
		NextToken:  token,
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "missing bearer token",
			mutate:      func(c *Config) { c.BearerToken = "" },
			expectError: true,
			errorMsg:    "bearer token is required",
		},
		{
			name:        "empty user agent",
			mutate:      func(c *Config) { c.UserAgent = "" },
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "invalid base url",
			mutate:      func(c *Config) { c.BaseURL = "not a url" },
			expectError: true,
			errorMsg:    `invalid base url "not a url"`,
		},
		{
			name: "min page size above max",
			mutate: func(c *Config) {
				c.MinPageSize = 50
				c.MaxPageSize = 20
			},
			expectError: true,
			errorMsg:    "min page size 50 exceeds max page size 20",
		},
		{
			name:        "zero request rate",
			mutate:      func(c *Config) { c.RequestsPerSecond = 0 },
			expectError: true,
			errorMsg:    "requests per second must be > 0 (got 0)",
		},
		{
			name:        "empty base url falls back to default",
			mutate:      func(c *Config) { c.BaseURL = "" },
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("test-token")
			tt.mutate(&cfg)

			client, err := New(cfg)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("token")

	if cfg.BearerToken != "token" {
		t.Errorf("BearerToken = %q, want %q", cfg.BearerToken, "token")
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.MaxPageSize != fetch.DefaultMaxPageSize {
		t.Errorf("MaxPageSize = %d, want %d", cfg.MaxPageSize, fetch.DefaultMaxPageSize)
	}
	if cfg.MinPageSize != MinPageSize {
		t.Errorf("MinPageSize = %d, want %d", cfg.MinPageSize, MinPageSize)
	}
	if cfg.RequestsPerSecond <= 0 {
		t.Errorf("RequestsPerSecond = %v, should be > 0", cfg.RequestsPerSecond)
	}
	if cfg.Redis != nil {
		t.Error("Redis should be nil by default")
	}
}

func TestPageSize(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	c := newTestClient(t, mock, nil)

	tests := []struct {
		requested int
		want      int
	}{
		{requested: 1, want: MinPageSize},
		{requested: 10, want: 10},
		{requested: 57, want: 57},
		{requested: 100, want: 100},
		{requested: 500, want: 100},
	}

	for _, tt := range tests {
		if got := c.PageSize(tt.requested); got != tt.want {
			t.Errorf("PageSize(%d) = %d, want %d", tt.requested, got, tt.want)
		}
	}
}

func TestSearch_RequestShape(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath, testutil.NewHealthyResponse(testutil.MakeTweets(0, 2), ""))

	c := newTestClient(t, mock, nil)

	if _, err := c.Search(context.Background(), searchReq("golang", 42, "abc123")); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if got := mock.GetLastRequestHeader().Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
	}
	if got := mock.GetLastRequestHeader().Get("User-Agent"); got != "sentiment-fetch/1.0" {
		t.Errorf("User-Agent = %q, want %q", got, "sentiment-fetch/1.0")
	}

	queries := mock.GetQueries()
	if len(queries) != 1 {
		t.Fatalf("request count = %d, want 1", len(queries))
	}
	q := queries[0]
	if q["query"] != "golang -is:retweet lang:en" {
		t.Errorf("query = %q, want %q", q["query"], "golang -is:retweet lang:en")
	}
	if q["max_results"] != "42" {
		t.Errorf("max_results = %q, want 42", q["max_results"])
	}
	if q["next_token"] != "abc123" {
		t.Errorf("next_token = %q, want abc123", q["next_token"])
	}
}

func TestSearch_FirstPageOmitsToken(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	c := newTestClient(t, mock, nil)

	if _, err := c.Search(context.Background(), searchReq("golang", 10, "")); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if _, ok := mock.GetQueries()[0]["next_token"]; ok {
		t.Error("first page request should not carry next_token")
	}
}

func TestSearch_DecodesPage(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath, testutil.NewHealthyResponse(testutil.MakeTweets(0, 3), "next-1"))

	c := newTestClient(t, mock, nil)

	resp, err := c.Search(context.Background(), searchReq("golang", 10, ""))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(resp.Records))
	}
	if resp.Records[0].ID != "1" || resp.Records[0].Text != "tweet number 1" {
		t.Errorf("Records[0] = %+v, want {1 tweet number 1}", resp.Records[0])
	}
	if resp.NextToken != "next-1" {
		t.Errorf("NextToken = %q, want next-1", resp.NextToken)
	}
}

func TestSearch_EmptyResult(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	c := newTestClient(t, mock, nil)

	resp, err := c.Search(context.Background(), searchReq("nothing-matches", 10, ""))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Records) != 0 || resp.NextToken != "" {
		t.Errorf("resp = %+v, want empty page", resp)
	}
}

func TestSearch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		response    testutil.MockResponse
		wantClass   ErrorClass
		wantStatus  int
		rateLimited bool
	}{
		{
			name:        "429 is rate limited",
			response:    testutil.NewRateLimitResponse(),
			wantClass:   ErrorClassRateLimit,
			wantStatus:  http.StatusTooManyRequests,
			rateLimited: true,
		},
		{
			name:       "401 is client error",
			response:   testutil.NewUnauthorizedResponse(),
			wantClass:  ErrorClassClient,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "503 is server error",
			response:   testutil.NewServerErrorResponse(),
			wantClass:  ErrorClassServer,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "malformed body is decode error",
			response: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       `{"data": [`,
			},
			wantClass:  ErrorClassDecode,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSearchAPI()
			defer mock.Close()
			mock.SetResponse(testutil.SearchPath, tt.response)

			c := newTestClient(t, mock, nil)

			_, err := c.Search(context.Background(), searchReq("golang", 10, ""))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %T: %v", err, err)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
			if got := errors.Is(err, fetch.ErrRateLimited); got != tt.rateLimited {
				t.Errorf("errors.Is(err, ErrRateLimited) = %v, want %v", got, tt.rateLimited)
			}
			if mock.GetRequestCount() != 1 {
				t.Errorf("request count = %d, want 1 (client must not retry)", mock.GetRequestCount())
			}
		})
	}
}

func TestSearch_ProblemDetailMessage(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath, testutil.MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"title":"Invalid Request","detail":"One or more parameters to your request was invalid."}`,
	})

	c := newTestClient(t, mock, nil)

	_, err := c.Search(context.Background(), searchReq("golang", 10, ""))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Message != "One or more parameters to your request was invalid." {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSearch_NetworkError(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	c := newTestClient(t, mock, nil)
	mock.Close()

	_, err := c.Search(context.Background(), searchReq("golang", 10, ""))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassNetwork)
	}
	if errors.Is(err, fetch.ErrRateLimited) {
		t.Error("network error must not be classified as rate limited")
	}
}

func TestSearch_ContextCanceled(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	c := newTestClient(t, mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, searchReq("golang", 10, ""))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("request count = %d, want 0", mock.GetRequestCount())
	}
}

func TestSearch_QuotaBlock(t *testing.T) {
	redisClient, mr := setupTestRedis(t)
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()

	mr.Set(ratelimit.RedisKeyLimit, "450")
	mr.Set(ratelimit.RedisKeyRemaining, "0")
	mr.Set(ratelimit.RedisKeyResetTimestamp, strconv.FormatInt(time.Now().Add(10*time.Minute).Unix(), 10))

	c := newTestClient(t, mock, redisClient)

	_, err := c.Search(context.Background(), searchReq("golang", 10, ""))
	if !errors.Is(err, fetch.ErrRateLimited) {
		t.Errorf("err = %v, want fetch.ErrRateLimited", err)
	}
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("err = %v, want ErrQuotaExhausted", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("request count = %d, want 0 (request should be blocked locally)", mock.GetRequestCount())
	}
}

func TestSearch_UpdatesQuota(t *testing.T) {
	redisClient, _ := setupTestRedis(t)
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath, testutil.NewHealthyResponse(testutil.MakeTweets(0, 1), ""))

	c := newTestClient(t, mock, redisClient)

	if _, err := c.Search(context.Background(), searchReq("golang", 10, "")); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	state, err := ratelimit.NewTracker(redisClient, c.logger).GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Remaining != 449 || state.Limit != 450 {
		t.Errorf("state = %+v, want remaining 449 limit 450", state)
	}
}

func TestSearch_CacheHit(t *testing.T) {
	redisClient, _ := setupTestRedis(t)
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath, testutil.NewHealthyResponse(testutil.MakeTweets(0, 5), "next-1"))

	c := newTestClient(t, mock, redisClient)
	ctx := context.Background()

	first, err := c.Search(ctx, searchReq("golang", 10, ""))
	if err != nil {
		t.Fatalf("first Search failed: %v", err)
	}
	second, err := c.Search(ctx, searchReq("golang", 10, ""))
	if err != nil {
		t.Fatalf("second Search failed: %v", err)
	}

	if mock.GetRequestCount() != 1 {
		t.Errorf("request count = %d, want 1 (second page from cache)", mock.GetRequestCount())
	}
	if len(second.Records) != len(first.Records) || second.NextToken != first.NextToken {
		t.Errorf("cached page = %+v, want %+v", second, first)
	}

	// A different continuation token is a different page.
	if _, err := c.Search(ctx, searchReq("golang", 10, "next-1")); err != nil {
		t.Fatalf("third Search failed: %v", err)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("request count = %d, want 2", mock.GetRequestCount())
	}
}

func TestSearch_ErrorsNotCached(t *testing.T) {
	redisClient, _ := setupTestRedis(t)
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetSequence(
		testutil.NewServerErrorResponse(),
		testutil.NewHealthyResponse(testutil.MakeTweets(0, 2), ""),
	)

	c := newTestClient(t, mock, redisClient)
	ctx := context.Background()

	if _, err := c.Search(ctx, searchReq("golang", 10, "")); err == nil {
		t.Fatal("Expected server error on first call")
	}
	resp, err := c.Search(ctx, searchReq("golang", 10, ""))
	if err != nil {
		t.Fatalf("second Search failed: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Errorf("len(Records) = %d, want 2", len(resp.Records))
	}
}

func TestClient_WithOrchestrator(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetHandler(testutil.SearchPath, testutil.NewPagedHandler(
		testutil.MakeTweets(0, 10),
		testutil.MakeTweets(10, 10),
		testutil.MakeTweets(20, 10),
	))

	c := newTestClient(t, mock, nil)
	orch := fetch.NewOrchestrator(fetch.NewSearchPageFetcher(c, c.config.MaxPageSize), fetch.DefaultConfig())

	result, err := orch.FetchRecords(context.Background(), fetch.Query{Text: "golang"}, 25)
	if err != nil {
		t.Fatalf("FetchRecords failed: %v", err)
	}
	if result.Outcome != fetch.OutcomeSuccess {
		t.Errorf("Outcome = %v, want success", result.Outcome)
	}
	if len(result.Records) != 25 {
		t.Errorf("len(Records) = %d, want 25", len(result.Records))
	}
	if result.Records[24].ID != "25" {
		t.Errorf("last record ID = %q, want 25", result.Records[24].ID)
	}

	queries := mock.GetQueries()
	if len(queries) != 3 {
		t.Fatalf("request count = %d, want 3", len(queries))
	}
	// 25 remaining, then 15, then 5 widened to the provider minimum.
	for i, want := range []string{"25", "15", "10"} {
		if queries[i]["max_results"] != want {
			t.Errorf("request %d max_results = %q, want %q", i, queries[i]["max_results"], want)
		}
	}
}

func TestClient_WithOrchestrator_RateLimitRecovery(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetSequence(
		testutil.NewRateLimitResponse(),
		testutil.NewHealthyResponse(testutil.MakeTweets(0, 10), ""),
	)

	c := newTestClient(t, mock, nil)

	var waits []time.Duration
	cfg := fetch.DefaultConfig()
	cfg.Sleeper = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	orch := fetch.NewOrchestrator(fetch.NewSearchPageFetcher(c, 0), cfg)

	result, err := orch.FetchRecords(context.Background(), fetch.Query{Text: "golang"}, 10)
	if err != nil {
		t.Fatalf("FetchRecords failed: %v", err)
	}
	if len(result.Records) != 10 || result.Attempts != 1 {
		t.Errorf("result = %d records, %d attempts; want 10, 1", len(result.Records), result.Attempts)
	}
	if len(waits) != 1 || waits[0] != 90*time.Second {
		t.Errorf("waits = %v, want [1m30s]", waits)
	}
}
