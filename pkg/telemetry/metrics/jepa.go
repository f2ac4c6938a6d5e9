package metrics

import (
	"github.com/localtrace/statetape/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// JEPAMetrics tracks the learned state encoder's training and retention
// lifecycle.
type JEPAMetrics struct {
	modelsTrained        prometheus.Counter
	modelsArchived       prometheus.Counter
	loadGateDenialsTotal *prometheus.CounterVec
}

// NewJEPAMetrics creates and registers JEPA lifecycle metrics.
func NewJEPAMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JEPAMetrics {
	jm := &JEPAMetrics{
		modelsTrained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "jepa",
			Name:      "models_trained_total",
			Help:      "Total models produced by TrainModel.",
		}),
		modelsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "jepa",
			Name:      "models_archived_total",
			Help:      "Total models moved to cold storage by the retention archiver.",
		}),
		loadGateDenialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "jepa",
			Name:      "load_gate_denials_total",
			Help:      "Total times LoadLatestApproved refused a model, by reason.",
		}, []string{"reason"}),
	}

	registry.MustRegister(jm.modelsTrained, jm.modelsArchived, jm.loadGateDenialsTotal)
	return jm
}

// RecordTrained records one successfully trained model.
func (jm *JEPAMetrics) RecordTrained() {
	jm.modelsTrained.Inc()
}

// RecordArchived records models moved to cold storage in one archive pass.
func (jm *JEPAMetrics) RecordArchived(n int) {
	if n > 0 {
		jm.modelsArchived.Add(float64(n))
	}
}

// RecordLoadGateDenial records a refused model load. reason is one of
// "signature_mismatch", "not_approved", "eval_failed", or
// "config_hash_mismatch".
func (jm *JEPAMetrics) RecordLoadGateDenial(reason string) {
	jm.loadGateDenialsTotal.WithLabelValues(reason).Inc()
}
