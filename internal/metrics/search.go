package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search and batch Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Searches served, by requested mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: ok / cached / degraded / error
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency by mode",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_fallbacks_total",
			Help:      "Degradations to a cheaper strategy, by reason",
		},
		[]string{"reason"},
	)

	SimilarityBackendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_backend_total",
			Help:      "Nearest-neighbour lookups by backend",
		},
		[]string{"backend"}, // native / bruteforce
	)

	BatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Items processed by embedding batches, by status",
		},
		[]string{"status"},
	)

	ResultCachePurgesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_purges_total",
			Help:      "Result cache purges after a catalog change",
		},
	)
)

var registerSearch sync.Once

// RegisterSearchMetrics registers the search and batch collectors with the default registry.
func RegisterSearchMetrics() {
	registerSearch.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchDuration,
			SearchFallbacksTotal,
			SimilarityBackendTotal,
			BatchItemsTotal,
			ResultCachePurgesTotal,
		)
	})
}
