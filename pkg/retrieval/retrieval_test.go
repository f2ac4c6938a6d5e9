package retrieval

import (
	"context"
	"testing"

	"github.com/localtrace/statetape/pkg/embedpack"
	"github.com/localtrace/statetape/pkg/model"
	"github.com/localtrace/statetape/pkg/policygate"
	"github.com/localtrace/statetape/pkg/statetape/vectorindex"
)

type fakeEmbedder struct{ vec []float32 }

func (f fakeEmbedder) Embed(text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}
	return f.vec, nil
}

type fakeStore struct {
	spans  []model.StateSpan
	marker vectorindex.SnapshotMarker
}

func (s *fakeStore) GetSpans(ctx context.Context, sessionID string, startMs, endMs int64, app string, limit int) ([]model.StateSpan, error) {
	var out []model.StateSpan
	for _, span := range s.spans {
		if sessionID != "" && span.SessionID != sessionID {
			continue
		}
		if app != "" && span.SummaryFeatures.App != app {
			continue
		}
		out = append(out, span)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) GetSpansByID(ctx context.Context, stateIDs []string) ([]model.StateSpan, error) {
	wanted := make(map[string]struct{}, len(stateIDs))
	for _, id := range stateIDs {
		wanted[id] = struct{}{}
	}
	var out []model.StateSpan
	for _, span := range s.spans {
		if _, ok := wanted[span.StateID]; ok {
			out = append(out, span)
		}
	}
	return out, nil
}

func (s *fakeStore) GetEdgesForStates(ctx context.Context, stateIDs []string) ([]model.StateEdge, error) {
	return nil, nil
}

func (s *fakeStore) GetSnapshotMarker(ctx context.Context) (vectorindex.SnapshotMarker, error) {
	return s.marker, nil
}

type emptyIndex struct{}

func (emptyIndex) Query(q []float32, filters vectorindex.Filters, k int, currentMarker vectorindex.SnapshotMarker, reload vectorindex.Reloader) ([]vectorindex.Hit, error) {
	return nil, nil
}

func testSpan(id, sessionID, app string, tsStart, tsEnd int64) model.StateSpan {
	vec := make([]float32, 4)
	vec[0] = 1
	return model.StateSpan{
		StateID:         id,
		SessionID:       sessionID,
		TSStartMs:       tsStart,
		TSEndMs:         tsEnd,
		ZEmbedding:      embedpack.Pack(vec),
		SummaryFeatures: model.SummaryFeatures{App: app},
		Evidence: []model.EvidenceRef{
			{MediaID: "m1", TSStartMs: tsStart, TSEndMs: tsEnd, SHA256: "sha"},
		},
		Provenance: model.ProvenanceRecord{
			ProducerPluginID:      "statetaped",
			ProducerPluginVersion: "1.0.0",
			ConfigHash:            "cfg",
			CreatedTSMs:           1,
		},
	}
}

func TestRunRejectsEmptyQuery(t *testing.T) {
	svc := &Service{
		Store:    &fakeStore{},
		Index:    emptyIndex{},
		Embedder: fakeEmbedder{vec: []float32{1, 0, 0, 0}},
		Config:   DefaultConfig(),
	}
	res := svc.Run(context.Background(), Query{Text: ""})
	if len(res.Hits) != 0 {
		t.Fatalf("expected no hits for empty query, got %d", len(res.Hits))
	}
}

func TestRunBlocksDisallowedApp(t *testing.T) {
	svc := &Service{
		Store:    &fakeStore{},
		Index:    emptyIndex{},
		Embedder: fakeEmbedder{vec: []float32{1, 0, 0, 0}},
		Policy:   policygate.Config{AppDenylist: []string{"bank"}},
		Config:   DefaultConfig(),
	}
	res := svc.Run(context.Background(), Query{Text: "find my password", App: "MyBank"})
	if len(res.Hits) != 0 {
		t.Fatalf("expected no hits for blocked app, got %d", len(res.Hits))
	}
	found := false
	for _, e := range res.Trace.Entries {
		if e.Tier == TierAppBlocked {
			found = true
		}
	}
	if !found {
		t.Error("expected APP_BLOCKED trace entry")
	}
}

func TestRunFallsBackToLinearScan(t *testing.T) {
	spans := []model.StateSpan{
		testSpan("s1", "session-1", "editor", 0, 1000),
		testSpan("s2", "session-1", "editor", 1000, 2000),
	}
	svc := &Service{
		Store:    &fakeStore{spans: spans},
		Index:    emptyIndex{},
		Embedder: fakeEmbedder{vec: []float32{1, 0, 0, 0}},
		Config:   DefaultConfig(),
	}
	res := svc.Run(context.Background(), Query{Text: "hello", SessionID: "session-1"})
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 hits via linear fallback, got %d", len(res.Hits))
	}

	foundLinear := false
	for _, e := range res.Trace.Entries {
		if e.Tier == TierVectorIndexLinear {
			foundLinear = true
		}
	}
	if !foundLinear {
		t.Error("expected VECTOR_INDEX_LINEAR trace entry")
	}
}

// fixedIndex returns a fixed set of hits regardless of the query vector,
// simulating an indexed search that points at a span the naive
// earliest-by-timestamp over-fetch would otherwise miss.
type fixedIndex struct{ hits []vectorindex.Hit }

func (f fixedIndex) Query(q []float32, filters vectorindex.Filters, k int, currentMarker vectorindex.SnapshotMarker, reload vectorindex.Reloader) ([]vectorindex.Hit, error) {
	return f.hits, nil
}

func TestRunResolvesIndexedHitBeyondOverFetchHeuristic(t *testing.T) {
	const spanCount = 50
	spans := make([]model.StateSpan, spanCount)
	for i := 0; i < spanCount; i++ {
		spans[i] = testSpan(
			"s"+string(rune('a'+i%26))+string(rune('0'+i/26)),
			"session-1", "editor", int64(i*1000), int64(i*1000+500),
		)
	}
	target := spans[spanCount-1].StateID

	svc := &Service{
		Store:    &fakeStore{spans: spans},
		Index:    fixedIndex{hits: []vectorindex.Hit{{StateID: target, Score: 0.9}}},
		Embedder: fakeEmbedder{vec: []float32{1, 0, 0, 0}},
		Config:   DefaultConfig(),
	}
	res := svc.Run(context.Background(), Query{Text: "hello", SessionID: "session-1"})
	if len(res.Hits) != 1 || res.Hits[0].StateID != target {
		t.Fatalf("expected the indexed hit %q to resolve, got %+v", target, res.Hits)
	}
}

func TestRunAttachesEvidence(t *testing.T) {
	spans := []model.StateSpan{testSpan("s1", "session-1", "editor", 0, 1000)}
	svc := &Service{
		Store:    &fakeStore{spans: spans},
		Index:    emptyIndex{},
		Embedder: fakeEmbedder{vec: []float32{1, 0, 0, 0}},
		Config:   DefaultConfig(),
	}
	res := svc.Run(context.Background(), Query{Text: "hello", SessionID: "session-1"})
	if len(res.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(res.Hits))
	}
	if len(res.Hits[0].Evidence) == 0 {
		t.Error("expected evidence attached to hit")
	}
}
