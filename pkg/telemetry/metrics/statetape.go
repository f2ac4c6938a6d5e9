package metrics

import (
	"github.com/localtrace/statetape/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StateTapeMetrics tracks the state-tape builder: windowing, span and edge
// construction.
type StateTapeMetrics struct {
	windowsProcessed     prometheus.Counter
	spansBuilt           prometheus.Counter
	edgesBuilt           prometheus.Counter
	windowsSkippedNoText prometheus.Counter
}

// NewStateTapeMetrics creates and registers state-tape builder metrics.
func NewStateTapeMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StateTapeMetrics {
	sm := &StateTapeMetrics{
		windowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "statetape",
			Name:      "windows_processed_total",
			Help:      "Total windows grouped by the state-tape builder.",
		}),
		spansBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "statetape",
			Name:      "spans_built_total",
			Help:      "Total state spans written to the state-tape store.",
		}),
		edgesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "statetape",
			Name:      "edges_built_total",
			Help:      "Total state edges written to the state-tape store.",
		}),
		windowsSkippedNoText: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "statetape",
			Name:      "windows_skipped_no_evidence_total",
			Help:      "Windows dropped for producing no evidence references.",
		}),
	}

	registry.MustRegister(sm.windowsProcessed, sm.spansBuilt, sm.edgesBuilt, sm.windowsSkippedNoText)
	return sm
}

// RecordBuild records the outcome of one builder.Process call.
func (sm *StateTapeMetrics) RecordBuild(windows, spans, edges, skipped int) {
	if windows > 0 {
		sm.windowsProcessed.Add(float64(windows))
	}
	if spans > 0 {
		sm.spansBuilt.Add(float64(spans))
	}
	if edges > 0 {
		sm.edgesBuilt.Add(float64(edges))
	}
	if skipped > 0 {
		sm.windowsSkippedNoText.Add(float64(skipped))
	}
}
