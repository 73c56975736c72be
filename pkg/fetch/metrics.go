package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for fetch operations.
var (
	fetchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_fetch_pages_total",
		Help: "Total page requests by outcome (ok, rate_limited, failed)",
	}, []string{"outcome"})

	fetchRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_fetch_records_total",
		Help: "Total records accumulated by successful fetches",
	})

	fetchRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_fetch_rate_limit_waits_total",
		Help: "Total number of rate-limit cool-downs",
	})

	fetchRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_fetch_rate_limit_wait_seconds",
		Help:    "Rate-limit cool-down duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 90, 180, 600},
	})

	fetchResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_fetch_results_total",
		Help: "Total FetchRecords calls by terminal outcome",
	}, []string{"outcome"})
)
