package fetch

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the configuration for rate-limit retries.
type RetryConfig struct {
	// MaxAttempts is the rate-limit ceiling. The MaxAttempts-th rate-limit
	// signal within one fetch gives up. The count never resets mid-fetch.
	MaxAttempts int

	// Wait is the cool-down before the first retry.
	Wait time.Duration

	// Multiplier grows the cool-down per attempt. 1.0 keeps it constant.
	Multiplier float64

	// MaxWait caps the cool-down when Multiplier > 1.
	MaxWait time.Duration
}

// DefaultRetryConfig returns the default retry configuration: three attempts
// with a constant 90 second cool-down.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Wait:        90 * time.Second,
		Multiplier:  1.0,
		MaxWait:     10 * time.Minute,
	}
}

// Validate checks the configuration for out-of-range values.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.Wait < 0 {
		return fmt.Errorf("wait must be >= 0 (got %v)", c.Wait)
	}
	if c.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0 (got %v)", c.Multiplier)
	}
	if c.MaxWait < c.Wait {
		return fmt.Errorf("max wait %v is below wait %v", c.MaxWait, c.Wait)
	}
	return nil
}

// Action is what the orchestrator must do after a rate-limit signal.
type Action int

const (
	// ActionWait means sleep for Decision.Wait, then request the same page again.
	ActionWait Action = iota

	// ActionGiveUp means the ceiling is reached; the fetch fails.
	ActionGiveUp
)

// Decision is returned by RetryScheduler.OnRateLimited.
type Decision struct {
	Action Action
	Wait   time.Duration
}

// RetryScheduler decides whether and how long to wait after a rate-limit signal.
type RetryScheduler struct {
	config RetryConfig
}

// NewRetryScheduler creates a scheduler. Zero fields fall back to the defaults.
func NewRetryScheduler(config RetryConfig) *RetryScheduler {
	def := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.Multiplier < 1.0 {
		config.Multiplier = def.Multiplier
	}
	if config.MaxWait < config.Wait {
		config.MaxWait = config.Wait
	}
	return &RetryScheduler{config: config}
}

// Ceiling returns the maximum number of rate-limit signals tolerated.
func (s *RetryScheduler) Ceiling() int {
	return s.config.MaxAttempts
}

// OnRateLimited returns the decision for the attempt-th rate-limit signal (1-based).
func (s *RetryScheduler) OnRateLimited(attempt int) Decision {
	if attempt >= s.config.MaxAttempts {
		return Decision{Action: ActionGiveUp}
	}
	return Decision{Action: ActionWait, Wait: s.backoff(attempt)}
}

func (s *RetryScheduler) backoff(attempt int) time.Duration {
	wait := s.config.Wait
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * s.config.Multiplier)
		if wait >= s.config.MaxWait {
			return s.config.MaxWait
		}
	}
	return wait
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper backed by a timer.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
