package metrics

import (
	"time"

	"github.com/localtrace/statetape/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RetrievalMetrics tracks the state-tape retrieval service.
type RetrievalMetrics struct {
	queryLatency *prometheus.HistogramVec
	queriesTotal *prometheus.CounterVec
}

// NewRetrievalMetrics creates and registers retrieval metrics.
func NewRetrievalMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RetrievalMetrics {
	rm := &RetrievalMetrics{
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "Duration of a retrieval query, by outcome tier.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"tier"}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total retrieval queries, by outcome tier.",
		}, []string{"tier"}),
	}

	registry.MustRegister(rm.queryLatency, rm.queriesTotal)
	return rm
}

// RecordQuery records one retrieval.Service.Run outcome. tier matches the
// trace tier the service resolved the query at, as a retrieval.Tier
// string (e.g. "VECTOR_INDEX", "VECTOR_INDEX_LINEAR", "APP_BLOCKED").
func (rm *RetrievalMetrics) RecordQuery(tier string, duration time.Duration) {
	rm.queryLatency.WithLabelValues(tier).Observe(duration.Seconds())
	rm.queriesTotal.WithLabelValues(tier).Inc()
}
