package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// retrievalMetrics holds the Prometheus metrics owned by a HybridRetriever.
// Registration happens against an injected registry so tests stay hermetic.
type retrievalMetrics struct {
	// durationSeconds records the end-to-end latency of one Retrieve call,
	// partitioned by whether the rerank stage ran.
	durationSeconds *prometheus.HistogramVec

	// rerankDegradationsTotal counts rerank passes that failed and fell back
	// to ANN order.
	rerankDegradationsTotal prometheus.Counter
}

// newRetrievalMetrics registers the retrieval metrics against reg.
func newRetrievalMetrics(reg prometheus.Registerer) *retrievalMetrics {
	factory := promauto.With(reg)

	return &retrievalMetrics{
		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crewmate",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Latency of one retrieval, partitioned by whether reranking ran.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"reranked"}),

		rerankDegradationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "crewmate",
			Subsystem: "retrieval",
			Name:      "rerank_degradations_total",
			Help:      "Rerank passes that failed and fell back to ANN order.",
		}),
	}
}
