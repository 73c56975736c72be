package sentiment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentiment_classifications_total",
		Help: "Total classified records by label",
	}, []string{"label"})

	classifierErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentiment_classifier_errors_total",
		Help: "Total classifier failures",
	})
)
