// Command sentiment-fetch fetches recent posts for a query, tolerating
// provider rate limits, and reports their sentiment distribution.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
)

// Exit codes
const (
	ExitSuccess            = 0
	ExitConfigError        = 1
	ExitRateLimitExhausted = 3
	ExitTransportFailure   = 4
	ExitCanceled           = 130
)

// Build information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fetch.KindRateLimitExhausted:
			return ExitRateLimitExhausted
		case fetch.KindCanceled:
			return ExitCanceled
		default:
			return ExitTransportFailure
		}
	}

	if errors.Is(err, context.Canceled) {
		return ExitCanceled
	}
	return ExitConfigError
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
