// Package client provides the recent-search HTTP client with request pacing,
// quota tracking, page caching and error classification.
//
// Client implements fetch.SearchClient. It never retries: a throttled request
// is reported as an *APIError matching fetch.ErrRateLimited and the fetch
// orchestrator decides whether to wait.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/sentiment-fetch/pkg/cache"
	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production search API.
	DefaultBaseURL = "https://api.twitter.com"

	// SearchPath is the recent-search endpoint.
	SearchPath = "/2/tweets/search/recent"

	// MinPageSize is the smallest max_results the provider accepts.
	MinPageSize = 10

	maxErrorBody = 1 << 10
)

// Prometheus metrics for search client operations.
var (
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Total search requests by status",
	}, []string{"status"})

	searchRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_request_duration_seconds",
		Help:    "Search request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	searchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_errors_total",
		Help: "Total search errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the search API (default: DefaultBaseURL)
	BaseURL string

	// BearerToken authenticates every request (REQUIRED)
	BearerToken string

	// User-Agent header
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// Request pacing
	RequestsPerSecond float64
	Burst             int

	// Page size bounds. Requests smaller than MinPageSize are widened and
	// the surplus is dropped by the caller.
	MinPageSize int
	MaxPageSize int

	// Redis client for quota state and page cache (optional)
	Redis *redis.Client

	// CacheTTL for fetched pages. Zero disables the page cache.
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(bearerToken string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		BearerToken:       bearerToken,
		UserAgent:         "sentiment-fetch/1.0",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 1,
		Burst:             1,
		MinPageSize:       MinPageSize,
		MaxPageSize:       fetch.DefaultMaxPageSize,
		CacheTTL:          60 * time.Second,
	}
}

// Client is the recent-search API client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	endpoint   string
	logger     zerolog.Logger
}

// New creates a new search client.
func New(cfg Config) (*Client, error) {
	if cfg.BearerToken == "" {
		return nil, fmt.Errorf("bearer token is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = fetch.DefaultMaxPageSize
	}
	if cfg.MinPageSize <= 0 {
		cfg.MinPageSize = 1
	}
	if cfg.MinPageSize > cfg.MaxPageSize {
		return nil, fmt.Errorf("min page size %d exceeds max page size %d", cfg.MinPageSize, cfg.MaxPageSize)
	}

	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be > 0 (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "search-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		config:   cfg,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + SearchPath,
		logger:   logger,
	}

	if cfg.Redis != nil {
		c.tracker = ratelimit.NewTracker(cfg.Redis, logger)
		if cfg.CacheTTL > 0 {
			c.cache = cache.NewManager(cfg.Redis)
		}
	}

	return c, nil
}

// searchResponse is the provider's wire format.
type searchResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// PageSize clamps a requested page size to the provider bounds.
func (c *Client) PageSize(requested int) int {
	return min(max(requested, c.config.MinPageSize), c.config.MaxPageSize)
}

// Search performs exactly one recent-search request.
func (c *Client) Search(ctx context.Context, req fetch.SearchRequest) (*fetch.SearchResponse, error) {
	params := url.Values{}
	params.Set("query", req.Query.Expression())
	params.Set("max_results", strconv.Itoa(c.PageSize(req.MaxResults)))
	if req.NextToken != "" {
		params.Set("next_token", req.NextToken)
	}

	// Step 1: Pace requests
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for request slot: %w", err)
	}

	// Step 2: Check provider quota
	if c.tracker != nil {
		allowed, err := c.tracker.ShouldAllowRequest(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("quota check: %w", err)
		case err != nil:
			c.logger.Warn().Err(err).Msg("Quota check failed - sending request anyway")
		case !allowed:
			searchRequestsTotal.WithLabelValues("blocked").Inc()
			searchErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return nil, &APIError{
				StatusCode: http.StatusTooManyRequests,
				ErrorClass: ErrorClassRateLimit,
				Message:    "request blocked until quota reset",
				Err:        errors.Join(fetch.ErrRateLimited, ErrQuotaExhausted),
			}
		}
	}

	// Step 3: Check cache
	cacheKey := cache.CacheKey{Endpoint: SearchPath, QueryParams: params}
	if c.cache != nil {
		if resp, ok := c.cachedPage(ctx, cacheKey); ok {
			return resp, nil
		}
	}

	// Step 4: Execute HTTP request
	resp, err := c.do(ctx, params)
	if err != nil {
		return nil, err
	}

	// Step 5: Store page
	if c.cache != nil {
		c.storePage(ctx, cacheKey, resp)
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, params url.Values) (*fetch.SearchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("query", params.Get("query")).
		Str("max_results", params.Get("max_results")).
		Bool("continuation", params.Has("next_token")).
		Msg("Executing search request")

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	searchRequestDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		c.logger.Error().Err(err).Msg("HTTP request failed")
		searchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		searchRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer httpResp.Body.Close()

	searchRequestsTotal.WithLabelValues(strconv.Itoa(httpResp.StatusCode)).Inc()

	if c.tracker != nil {
		if err := c.tracker.UpdateFromHeaders(ctx, httpResp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	if class := classifyStatus(httpResp.StatusCode); class != "" {
		searchErrorsTotal.WithLabelValues(string(class)).Inc()

		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		apiErr := &APIError{
			StatusCode: httpResp.StatusCode,
			ErrorClass: class,
			Message:    errorMessage(httpResp.Status, body),
		}
		if class == ErrorClassRateLimit {
			apiErr.Err = fetch.ErrRateLimited
		}

		c.logger.Warn().
			Int("status", httpResp.StatusCode).
			Str("error_class", string(class)).
			Msg("Search request error")
		return nil, apiErr
	}

	var wire searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wire); err != nil {
		searchErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &APIError{
			StatusCode: httpResp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode search response",
			Err:        err,
		}
	}

	out := &fetch.SearchResponse{
		Records:   make([]fetch.Record, 0, len(wire.Data)),
		NextToken: wire.Meta.NextToken,
	}
	for _, item := range wire.Data {
		out.Records = append(out.Records, fetch.Record{ID: item.ID, Text: item.Text})
	}

	return out, nil
}

func (c *Client) cachedPage(ctx context.Context, key cache.CacheKey) (*fetch.SearchResponse, bool) {
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Msg("Cache get error")
		}
		return nil, false
	}

	var resp fetch.SearchResponse
	if err := json.Unmarshal(entry.Data, &resp); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding undecodable cached page")
		return nil, false
	}

	c.logger.Debug().
		Dur("age", entry.Age()).
		Int("records", len(resp.Records)).
		Msg("Serving page from cache")
	return &resp, true
}

func (c *Client) storePage(ctx context.Context, key cache.CacheKey, resp *fetch.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to encode page for cache")
		return
	}
	if err := c.cache.Set(ctx, key, cache.NewEntry(data, c.config.CacheTTL)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache page")
	}
}

// errorMessage prefers the provider's "detail" or "title" field over the status line.
func errorMessage(status string, body []byte) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &problem) == nil {
		if problem.Detail != "" {
			return problem.Detail
		}
		if problem.Title != "" {
			return problem.Title
		}
	}
	return status
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
