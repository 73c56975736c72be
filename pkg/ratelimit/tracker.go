package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Response headers carrying the provider quota.
const (
	HeaderLimit     = "x-rate-limit-limit"
	HeaderRemaining = "x-rate-limit-remaining"
	HeaderReset     = "x-rate-limit-reset"
)

// Prometheus metrics for quota tracking.
var (
	searchQuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "search_quota_remaining",
		Help: "Number of requests remaining in the current provider quota window",
	})

	searchQuotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_quota_blocks_total",
		Help: "Total number of requests blocked because the quota window is exhausted",
	})

	searchQuotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_quota_throttles_total",
		Help: "Total number of requests throttled because the quota is low",
	})
)

// Tracker monitors the provider quota and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new quota tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current quota state from Redis.
// Returns an unconstrained state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	pipe := t.redis.Pipeline()
	limitCmd := pipe.Get(ctx, RedisKeyLimit)
	remainingCmd := pipe.Get(ctx, RedisKeyRemaining)
	resetCmd := pipe.Get(ctx, RedisKeyResetTimestamp)
	lastUpdateCmd := pipe.Get(ctx, RedisKeyLastUpdate)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get quota state: %w", err)
	}

	remaining, err := remainingCmd.Int()
	if errors.Is(err, redis.Nil) {
		t.logger.Debug().Msg("No quota state in Redis, assuming unconstrained")
		return &QuotaState{
			Remaining:  -1,
			LastUpdate: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}

	limit, err := limitCmd.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("parse limit: %w", err)
	}

	resetTimestamp, err := resetCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("parse reset timestamp: %w", err)
	}

	var lastUpdate time.Time
	if raw, err := lastUpdateCmd.Bytes(); err == nil {
		if err := json.Unmarshal(raw, &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return &QuotaState{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}, nil
}

// ParseHeaders extracts the quota from response headers.
// Returns nil, nil if the response carries no quota headers.
func ParseHeaders(headers http.Header) (*QuotaState, error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return nil, fmt.Errorf("%s header missing", HeaderReset)
	}
	resetEpoch, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	limit := 0
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return nil, fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	return &QuotaState{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    time.Unix(resetEpoch, 0),
		LastUpdate: time.Now(),
	}, nil
}

// UpdateFromHeaders parses quota headers and updates Redis state.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, err := ParseHeaders(headers)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// Keys expire shortly after the window resets so a stale window never blocks.
	ttl := state.TimeUntilReset() + time.Minute

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyLimit, state.Limit, ttl)
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	searchQuotaRemaining.Set(float64(state.Remaining))

	switch {
	case state.IsExhausted():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Search quota exhausted - requests will be blocked until reset")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Search quota low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("limit", state.Limit).
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Search quota state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be sent.
// Returns false while the quota window is exhausted. Returns true but may
// pause for ThrottleDelay while the quota is low.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.IsExhausted() {
		t.logger.Warn().
			Dur("reset_in", state.TimeUntilReset()).
			Msg("Search quota exhausted - blocking request")
		searchQuotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Msg("Search quota low - throttling request")
		searchQuotaThrottlesTotal.Inc()

		timer := time.NewTimer(ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
