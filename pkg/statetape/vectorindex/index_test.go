package vectorindex

import (
	"testing"

	"github.com/localtrace/statetape/pkg/embedpack"
	"github.com/localtrace/statetape/pkg/model"
)

func span(id, session, app string, vec []float32, tsStart, tsEnd int64) model.StateSpan {
	return model.StateSpan{
		StateID:         id,
		SessionID:       session,
		TSStartMs:       tsStart,
		TSEndMs:         tsEnd,
		ZEmbedding:      embedpack.Pack(vec),
		SummaryFeatures: model.SummaryFeatures{App: app},
	}
}

func TestIndexQueryRanksByCosineSimilarity(t *testing.T) {
	idx := New(0)
	spans := []model.StateSpan{
		span("a", "s1", "editor", []float32{1, 0, 0, 0}, 1000, 2000),
		span("b", "s1", "editor", []float32{0, 1, 0, 0}, 3000, 4000),
		span("c", "s1", "editor", []float32{0.9, 0.1, 0, 0}, 5000, 6000),
	}
	if err := idx.IndexSpans(spans, SnapshotMarker{SpanCount: 3}); err != nil {
		t.Fatalf("IndexSpans: %v", err)
	}

	hits, err := idx.Query([]float32{1, 0, 0, 0}, Filters{}, 2, SnapshotMarker{SpanCount: 3}, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].StateID != "a" {
		t.Fatalf("expected exact match 'a' to rank first, got %s", hits[0].StateID)
	}
}

func TestIndexQueryFiltersBySession(t *testing.T) {
	idx := New(0)
	spans := []model.StateSpan{
		span("a", "s1", "editor", []float32{1, 0}, 1000, 2000),
		span("b", "s2", "editor", []float32{1, 0}, 1000, 2000),
	}
	if err := idx.IndexSpans(spans, SnapshotMarker{SpanCount: 2}); err != nil {
		t.Fatalf("IndexSpans: %v", err)
	}

	hits, err := idx.Query([]float32{1, 0}, Filters{SessionID: "s2"}, 10, SnapshotMarker{SpanCount: 2}, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].StateID != "b" {
		t.Fatalf("expected only session s2's span, got %+v", hits)
	}
}

func TestIndexQueryReloadsOnStaleMarker(t *testing.T) {
	idx := New(0)
	if err := idx.IndexSpans(nil, SnapshotMarker{SpanCount: 0}); err != nil {
		t.Fatalf("IndexSpans: %v", err)
	}

	reloadCalled := false
	freshMarker := SnapshotMarker{SpanCount: 1}
	reload := func() ([]model.StateSpan, SnapshotMarker, error) {
		reloadCalled = true
		return []model.StateSpan{span("a", "s1", "editor", []float32{1, 0}, 1000, 2000)}, freshMarker, nil
	}

	hits, err := idx.Query([]float32{1, 0}, Filters{}, 10, freshMarker, reload)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !reloadCalled {
		t.Fatalf("expected reload to be invoked on stale marker")
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit after reload, got %d", len(hits))
	}
}

func TestIndexQueryReturnsEmptyWhenStillStaleAfterReload(t *testing.T) {
	idx := New(0)
	if err := idx.IndexSpans(nil, SnapshotMarker{SpanCount: 0}); err != nil {
		t.Fatalf("IndexSpans: %v", err)
	}

	reload := func() ([]model.StateSpan, SnapshotMarker, error) {
		return nil, SnapshotMarker{SpanCount: 99}, nil
	}

	hits, err := idx.Query([]float32{1, 0}, Filters{}, 10, SnapshotMarker{SpanCount: 1}, reload)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty result when markers still diverge after reload, got %+v", hits)
	}
}
