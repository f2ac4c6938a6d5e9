package metrics

import (
	"time"

	"github.com/localtrace/statetape/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// IdleMetrics tracks the idle processor's sweep loop.
type IdleMetrics struct {
	sweepDuration    prometheus.Histogram
	recordsProcessed prometheus.Counter
	sweepErrors      prometheus.Counter
	checkpointLag    *prometheus.GaugeVec
}

// NewIdleMetrics creates and registers idle-processor metrics.
func NewIdleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *IdleMetrics {
	im := &IdleMetrics{
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "idle",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a single idle processor step.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		recordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "idle",
			Name:      "records_processed_total",
			Help:      "Total evidence records processed by the idle processor.",
		}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "idle",
			Name:      "sweep_errors_total",
			Help:      "Total errors encountered during idle processor steps.",
		}),
		checkpointLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "idle",
			Name:      "checkpoint_lag_records",
			Help:      "Records behind the latest known record, by checkpoint kind.",
		}, []string{"checkpoint"}),
	}

	registry.MustRegister(im.sweepDuration, im.recordsProcessed, im.sweepErrors, im.checkpointLag)
	return im
}

// RecordSweep records the outcome of one idle processor step.
func (im *IdleMetrics) RecordSweep(duration time.Duration, processed, errs int) {
	im.sweepDuration.Observe(duration.Seconds())
	if processed > 0 {
		im.recordsProcessed.Add(float64(processed))
	}
	if errs > 0 {
		im.sweepErrors.Add(float64(errs))
	}
}

// SetCheckpointLag records how many records a checkpoint trails the latest
// known record by ("idle" or "state_tape").
func (im *IdleMetrics) SetCheckpointLag(checkpoint string, lag int) {
	im.checkpointLag.WithLabelValues(checkpoint).Set(float64(lag))
}
