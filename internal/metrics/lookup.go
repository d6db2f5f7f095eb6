package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeTransport    = "transport_error"
	OutcomeValidation   = "validation_error"
	OutcomeItemsWarning = "items_warning"
	OutcomeStale        = "stale"
)

// Lookup Prometheus metrics.
var (
	LookupRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doclookup",
			Name:      "requests_total",
			Help:      "Total number of document lookup operations",
		},
		[]string{"doc_type", "operation", "outcome"},
	)

	LookupRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doclookup",
			Name:      "request_duration_seconds",
			Help:      "Document lookup duration in seconds, backend round trips included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"doc_type", "operation"},
	)

	LookupResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doclookup",
			Name:      "results_total",
			Help:      "Records returned by lookup operations",
		},
		[]string{"doc_type", "operation"},
	)
)

var lookupMetricsRegistered bool

// RegisterLookupMetrics registers the lookup collectors with the default registry. Must be called once from main.
func RegisterLookupMetrics() {
	if lookupMetricsRegistered {
		return
	}
	prometheus.MustRegister(LookupRequestsTotal)
	prometheus.MustRegister(LookupRequestDuration)
	prometheus.MustRegister(LookupResultsTotal)
	lookupMetricsRegistered = true
}

// ObserveLookup records one finished operation.
func ObserveLookup(docType, operation, outcome string, results int, elapsed time.Duration) {
	LookupRequestsTotal.WithLabelValues(docType, operation, outcome).Inc()
	LookupRequestDuration.WithLabelValues(docType, operation).Observe(elapsed.Seconds())
	if results > 0 {
		LookupResultsTotal.WithLabelValues(docType, operation).Add(float64(results))
	}
}
