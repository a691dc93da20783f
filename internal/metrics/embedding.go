package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding provider and model metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Provider calls by outcome",
		},
		[]string{"provider", "model", "status"}, // status: success / error
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Provider call latency",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingBatchTexts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_batch_texts",
			Help:      "Texts sent per provider call",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9), // 1..256
		},
		[]string{"provider"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Tokens billed by the provider",
		},
		[]string{"provider", "model", "type"}, // type: prompt / total
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_errors_total",
			Help:      "Provider failures by kind",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache lookups",
		},
		[]string{"result"}, // hit / miss
	)

	ModelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Lazy model initialisation attempts",
		},
		[]string{"status"},
	)
)

var registerEmbedding sync.Once

// RegisterEmbeddingMetrics registers the embedding collectors with the default registry.
// Safe to call more than once.
func RegisterEmbeddingMetrics() {
	registerEmbedding.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingBatchTexts,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			ModelLoadsTotal,
		)
	})
}

// ObserveEmbeddingCall records a successful provider call that vectorized n texts.
func ObserveEmbeddingCall(provider, model string, n int, took time.Duration) {
	EmbeddingRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(took.Seconds())
	EmbeddingBatchTexts.WithLabelValues(provider).Observe(float64(n))
}

// ObserveEmbeddingTokens adds reported usage. Providers that report nothing are skipped.
func ObserveEmbeddingTokens(provider, model string, prompt, total int) {
	if total <= 0 {
		return
	}
	EmbeddingTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	EmbeddingTokensTotal.WithLabelValues(provider, model, "total").Add(float64(total))
}

// CountEmbeddingError records a failed provider call.
func CountEmbeddingError(provider, model, kind string) {
	EmbeddingRequestsTotal.WithLabelValues(provider, model, "error").Inc()
	EmbeddingErrorsTotal.WithLabelValues(provider, model, kind).Inc()
}

// NewModelLoadedGauge reports 1 once the lazily loaded model is up. The caller registers it.
func NewModelLoadedGauge(loaded func() bool) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when the embedding model is initialised, 0 before the first use or after a failed load",
		},
		func() float64 {
			if loaded() {
				return 1
			}
			return 0
		},
	)
}
