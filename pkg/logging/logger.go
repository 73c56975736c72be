// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level.
// An empty name is Info; an unknown name is an error.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewRunLogger creates a component logger tagged with a run correlation ID.
func NewRunLogger(component, runID string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("run_id", runID).
		Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Every accepted page (page number, records on page, running total)
//   - Cache operations (hit/miss, age)
//   - Search request parameters
//
// Info: Normal operation events
//   - Completed fetches (fetched, pages, rate_limit_attempts)
//   - Empty results
//   - Server startup/shutdown, scheduled runs
//
// Warn: Warning conditions that don't prevent operation
//   - Rate limit cool-downs (attempt, max_attempts, wait)
//   - Quota throttling
//   - Cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Terminal fetch failures (error_class)
//   - Classifier failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package (fetch, search-client, sentiment, app)
//   - run_id: correlation ID of one analysis run
//   - query: rendered search expression
//   - target: requested record count
//   - fetched: records accumulated so far
//   - page: 1-based page number
//   - attempt: rate-limit signal count within a fetch
//   - wait: cool-down duration
//   - error_class: failure classification
