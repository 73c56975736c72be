package fetch

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetch engine.
var (
	// ErrRateLimited is matched by SearchClient errors when the provider throttles the caller.
	ErrRateLimited = errors.New("rate limited")

	// ErrRetryExhausted is returned when the rate-limit retry ceiling is reached.
	ErrRetryExhausted = errors.New("rate limit retries exhausted")

	// ErrInvalidTarget is returned when the requested record count is not positive.
	ErrInvalidTarget = errors.New("target count must be > 0")
)

// ErrorKind classifies a terminal fetch failure.
type ErrorKind string

const (
	// KindRateLimitExhausted means the provider kept throttling past the retry ceiling.
	KindRateLimitExhausted ErrorKind = "rate_limit_exhausted"

	// KindTransport means a page request failed for a non rate-limit reason.
	KindTransport ErrorKind = "transport"

	// KindCanceled means the caller's context ended the fetch.
	KindCanceled ErrorKind = "canceled"
)

// Advice is the corrective action a caller should take for a failure kind.
type Advice string

const (
	AdviceNone        Advice = ""
	AdviceRetryLater  Advice = "try again later or use offline mode"
	AdviceCheckSource Advice = "check connectivity and the query"
)

// FetchError is the terminal error of a FetchRecords call.
type FetchError struct {
	Kind     ErrorKind
	Query    string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindRateLimitExhausted:
		return fmt.Sprintf("fetch %q: %v after %d attempts", e.Query, e.Err, e.Attempts)
	default:
		return fmt.Sprintf("fetch %q: %s: %v", e.Query, e.Kind, e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Advice returns the corrective action for this failure.
func (e *FetchError) Advice() Advice {
	switch e.Kind {
	case KindRateLimitExhausted:
		return AdviceRetryLater
	case KindTransport:
		return AdviceCheckSource
	default:
		return AdviceNone
	}
}
