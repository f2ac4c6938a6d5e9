package metrics

import (
	"time"

	"github.com/localtrace/statetape/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// VectorIndexMetrics tracks the in-memory sign-bucket vector index.
type VectorIndexMetrics struct {
	searchLatency   prometheus.Histogram
	hitsReturned    prometheus.Histogram
	reloadsTotal    prometheus.Counter
	bucketOccupancy prometheus.Gauge
}

// NewVectorIndexMetrics creates and registers vector-index metrics.
func NewVectorIndexMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *VectorIndexMetrics {
	vm := &VectorIndexMetrics{
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "vectorindex",
			Name:      "search_duration_seconds",
			Help:      "Duration of a vector index query, including linear-scan fallback.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		hitsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "vectorindex",
			Name:      "hits_returned",
			Help:      "Number of hits returned per query.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		reloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "vectorindex",
			Name:      "reloads_total",
			Help:      "Total index reloads triggered by a stale snapshot marker.",
		}),
		bucketOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "vectorindex",
			Name:      "indexed_spans",
			Help:      "Number of spans currently held in the index.",
		}),
	}

	registry.MustRegister(vm.searchLatency, vm.hitsReturned, vm.reloadsTotal, vm.bucketOccupancy)
	return vm
}

// RecordSearch records the outcome of one Index.Query call.
func (vm *VectorIndexMetrics) RecordSearch(duration time.Duration, hits int) {
	vm.searchLatency.Observe(duration.Seconds())
	vm.hitsReturned.Observe(float64(hits))
}

// RecordReload records a reload triggered by a stale snapshot marker.
func (vm *VectorIndexMetrics) RecordReload() {
	vm.reloadsTotal.Inc()
}

// SetIndexedSpans reports the current number of spans held in the index.
func (vm *VectorIndexMetrics) SetIndexedSpans(n int) {
	vm.bucketOccupancy.Set(float64(n))
}
