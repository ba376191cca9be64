package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the retrieval and indexing pipelines.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codemem",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding batch requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codemem",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding batch request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codemem",
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieve duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codemem",
			Name:      "response_cache_total",
			Help:      "Response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	PacksTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codemem",
			Name:      "packs_truncated_total",
			Help:      "Evidence packs returned with the truncated flag set",
		},
	)

	IndexUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codemem",
			Name:      "index_updates_total",
			Help:      "Index update operations by outcome",
		},
		[]string{"status"}, // "ok" / "skipped" / "error"
	)
)

var registered bool

// Register registers all metrics with the default registry. Must be
// called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(PacksTruncatedTotal)
	prometheus.MustRegister(IndexUpdatesTotal)
	registered = true
}
