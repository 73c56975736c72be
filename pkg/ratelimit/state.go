// Package ratelimit tracks the search provider's request quota.
// It reads the x-rate-limit-limit, x-rate-limit-remaining and
// x-rate-limit-reset response headers and gates requests while the quota
// window is exhausted, so a throttled caller does not burn requests that are
// certain to be rejected.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyLimit          = "search:rate_limit:limit"
	RedisKeyRemaining      = "search:rate_limit:remaining"
	RedisKeyResetTimestamp = "search:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "search:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// ThrottleThreshold slows requests down when fewer requests than this remain.
	ThrottleThreshold = 5

	// ThrottleDelay is the pause applied per request while throttling.
	ThrottleDelay = 1 * time.Second
)

// QuotaState represents the provider quota for the current window.
// It is shared across processes via Redis.
type QuotaState struct {
	// Limit is the request budget of the window (x-rate-limit-limit).
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (x-rate-limit-remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets (x-rate-limit-reset, unix seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsExhausted returns true if no requests remain and the window has not reset yet.
func (s *QuotaState) IsExhausted() bool {
	return s.Remaining <= 0 && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if the quota is low but not exhausted.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining < ThrottleThreshold && !s.IsExhausted() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
