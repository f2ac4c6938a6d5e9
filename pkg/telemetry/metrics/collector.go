package metrics

import (
	"github.com/localtrace/statetape/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the top-level handle for every metric group the daemon
// exposes. Components record directly against their group (e.g.
// collector.Idle.RecordSweep(...)) rather than through pass-through methods,
// since each group's call shape differs too much to share one.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	Idle        *IdleMetrics
	StateTape   *StateTapeMetrics
	VectorIndex *VectorIndexMetrics
	Retrieval   *RetrievalMetrics
	JEPA        *JEPAMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "statetape"
	}

	return &Collector{
		enabled:     cfg.Enabled,
		registry:    registry,
		Idle:        NewIdleMetrics(cfg, registry),
		StateTape:   NewStateTapeMetrics(cfg, registry),
		VectorIndex: NewVectorIndexMetrics(cfg, registry),
		Retrieval:   NewRetrievalMetrics(cfg, registry),
		JEPA:        NewJEPAMetrics(cfg, registry),
	}
}

// Enabled reports whether the metrics endpoint should be served. Metric
// groups register and accept writes regardless; this only gates whether
// cmd/statetaped mounts the HTTP handler.
func (c *Collector) Enabled() bool {
	return c.enabled
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
