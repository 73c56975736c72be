// Package metrics provides the Prometheus registry and HTTP handler for the
// sentiment fetcher. All metrics are defined in their respective packages
// (fetch, client, cache, ratelimit, sentiment) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the fetcher.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Fetch Metrics (pkg/fetch):
//   - search_fetch_pages_total{outcome} (Counter): Page requests by outcome (ok, rate_limited, failed)
//   - search_fetch_records_total (Counter): Records returned by successful fetches
//   - search_fetch_rate_limit_waits_total (Counter): Rate-limit cool-downs started
//   - search_fetch_rate_limit_wait_seconds (Histogram): Cool-down durations
//   - search_fetch_results_total{outcome} (Counter): Terminal fetch results
//     (success, empty, rate_limit_exhausted, transport_failure, canceled)
//
// Request Metrics (pkg/client):
//   - search_requests_total{status} (Counter): Requests by HTTP status, "blocked" or "network_error"
//   - search_request_duration_seconds (Histogram): Request duration
//   - search_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Quota Metrics (pkg/ratelimit):
//   - search_quota_remaining (Gauge): Requests remaining in the provider window
//   - search_quota_blocks_total (Counter): Requests blocked while the window is exhausted
//   - search_quota_throttles_total (Counter): Requests delayed while the quota is low
//
// Cache Metrics (pkg/cache):
//   - search_cache_hits_total (Counter): Page cache hits
//   - search_cache_misses_total (Counter): Page cache misses
//   - search_cache_errors_total{operation} (Counter): Cache operation errors
//
// Classification Metrics (pkg/sentiment):
//   - sentiment_classifications_total{label} (Counter): Classified records by label
//   - sentiment_classifier_errors_total (Counter): Classifier failures
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(search_cache_hits_total[5m])) /
//   (sum(rate(search_cache_hits_total[5m])) + sum(rate(search_cache_misses_total[5m])))
//
//   # Fetches giving up on rate limits
//   rate(search_fetch_results_total{outcome="rate_limit_exhausted"}[1h])
//
//   # Quota Status
//   search_quota_remaining < 20
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(search_request_duration_seconds_bucket[5m]))
