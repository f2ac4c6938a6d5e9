package metrics

import (
	"testing"
	"time"

	"github.com/localtrace/statetape/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:   true,
		Namespace: "statetape_test",
	}
}

func TestNewCollector(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	if !c.Enabled() {
		t.Error("expected collector to be enabled")
	}
	if c.Registry() == nil {
		t.Error("expected non-nil registry")
	}
}

func TestNewCollector_NamespaceDefault(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	c := NewCollector(cfg, nil)
	if cfg.Namespace != "statetape" {
		t.Errorf("expected namespace default %q, got %q", "statetape", cfg.Namespace)
	}
	_ = c
}

func TestIdleMetrics_RecordSweep(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.Idle.RecordSweep(50*time.Millisecond, 12, 1)

	if got := testutil.ToFloat64(c.Idle.recordsProcessed); got != 12 {
		t.Errorf("expected 12 records processed, got %v", got)
	}
	if got := testutil.ToFloat64(c.Idle.sweepErrors); got != 1 {
		t.Errorf("expected 1 sweep error, got %v", got)
	}
}

func TestIdleMetrics_CheckpointLag(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.Idle.SetCheckpointLag("idle", 42)

	if got := testutil.ToFloat64(c.Idle.checkpointLag.WithLabelValues("idle")); got != 42 {
		t.Errorf("expected checkpoint lag 42, got %v", got)
	}
}

func TestStateTapeMetrics_RecordBuild(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.StateTape.RecordBuild(2, 5, 3, 1)

	if got := testutil.ToFloat64(c.StateTape.windowsProcessed); got != 2 {
		t.Errorf("expected 2 windows, got %v", got)
	}
	if got := testutil.ToFloat64(c.StateTape.spansBuilt); got != 5 {
		t.Errorf("expected 5 spans, got %v", got)
	}
	if got := testutil.ToFloat64(c.StateTape.edgesBuilt); got != 3 {
		t.Errorf("expected 3 edges, got %v", got)
	}
}

func TestVectorIndexMetrics_RecordSearch(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.VectorIndex.RecordSearch(5*time.Millisecond, 10)
	c.VectorIndex.RecordReload()
	c.VectorIndex.SetIndexedSpans(100)

	if got := testutil.ToFloat64(c.VectorIndex.reloadsTotal); got != 1 {
		t.Errorf("expected 1 reload, got %v", got)
	}
	if got := testutil.ToFloat64(c.VectorIndex.bucketOccupancy); got != 100 {
		t.Errorf("expected 100 indexed spans, got %v", got)
	}
}

func TestRetrievalMetrics_RecordQuery(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.Retrieval.RecordQuery("VECTOR_INDEX", 2*time.Millisecond)
	c.Retrieval.RecordQuery("VECTOR_INDEX", 3*time.Millisecond)

	if got := testutil.ToFloat64(c.Retrieval.queriesTotal.WithLabelValues("VECTOR_INDEX")); got != 2 {
		t.Errorf("expected 2 queries recorded, got %v", got)
	}
}

func TestJEPAMetrics_Lifecycle(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.JEPA.RecordTrained()
	c.JEPA.RecordArchived(2)
	c.JEPA.RecordLoadGateDenial("not_approved")
	c.JEPA.RecordLoadGateDenial("not_approved")

	if got := testutil.ToFloat64(c.JEPA.modelsTrained); got != 1 {
		t.Errorf("expected 1 model trained, got %v", got)
	}
	if got := testutil.ToFloat64(c.JEPA.modelsArchived); got != 2 {
		t.Errorf("expected 2 models archived, got %v", got)
	}
	if got := testutil.ToFloat64(c.JEPA.loadGateDenialsTotal.WithLabelValues("not_approved")); got != 2 {
		t.Errorf("expected 2 load gate denials, got %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, nil)
	if c.Enabled() {
		t.Error("expected collector to report disabled")
	}
}
