package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/sentiment-fetch/internal/app"
	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/logging"
	"github.com/Sternrassler/sentiment-fetch/pkg/metrics"
	"github.com/spf13/cobra"
)

// Limits for the /analyze endpoint.
const (
	DefaultServeCount = 20
	MaxServeCount     = 500
	ShutdownTimeout   = 10 * time.Second
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analyses, health and metrics over HTTP",
	Long: `Start an HTTP server exposing:

  GET /health                          liveness probe
  GET /metrics                         Prometheus metrics
  GET /analyze?q=<query>&count=N       run one analysis, JSON report
              &offline=true            use synthetic posts`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
}

// errorResponse is the JSON body of a failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Outcome string `json:"outcome,omitempty"`
	Advice  string `json:"advice,omitempty"`
}

type server struct {
	runner     *app.Runner
	query      func(string) fetch.Query
	retryAfter time.Duration
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logging.NewLogger("server")
	ctx := cmd.Context()

	runner, cleanup, err := app.New(ctx, cfg, app.Options{
		OnWait: func(n fetch.WaitNotice) {
			logger.Warn().
				Str("query", n.Query.Expression()).
				Int("attempt", n.Attempt).
				Int("max_attempts", n.Ceiling).
				Dur("wait", n.Wait).
				Msg("Rate limit reached - waiting before retry")
		},
	})
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer cleanup()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := &server{
		runner:     runner,
		query:      cfg.Query,
		retryAfter: cfg.Retry.Wait,
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Bool("live", runner.Live != nil).
			Msg("Server starting")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /analyze", s.analyzeHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := params.Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query parameter q"})
		return
	}

	count := DefaultServeCount
	if raw := params.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxServeCount {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: fmt.Sprintf("count must be an integer between 1 and %d", MaxServeCount),
			})
			return
		}
		count = n
	}

	offline := false
	if raw := params.Get("offline"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "offline must be a boolean"})
			return
		}
		offline = b
	}

	rep, err := s.runner.Run(r.Context(), s.query(q), count, offline)
	if err == nil {
		writeJSON(w, http.StatusOK, rep)
		return
	}

	status, body := s.errorStatus(rep, err)
	if status == http.StatusTooManyRequests && s.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.retryAfter.Seconds())))
	}
	writeJSON(w, status, body)
}

// errorStatus maps a failed run to an HTTP status and body.
func (s *server) errorStatus(rep *app.Report, err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}
	if rep != nil {
		body.Outcome = rep.Outcome
	}

	if errors.Is(err, app.ErrLiveUnavailable) {
		body.Advice = "retry with offline=true"
		return http.StatusServiceUnavailable, body
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		body.Advice = string(fe.Advice())
		switch fe.Kind {
		case fetch.KindRateLimitExhausted:
			return http.StatusTooManyRequests, body
		case fetch.KindCanceled:
			return http.StatusServiceUnavailable, body
		default:
			return http.StatusBadGateway, body
		}
	}
	return http.StatusInternalServerError, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
