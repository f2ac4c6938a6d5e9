package builder

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/localtrace/statetape/pkg/embedpack"
	"github.com/localtrace/statetape/pkg/model"
)

const testDim = 8

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string) ([]float32, error) {
	return hashToUnitVector("text:"+text, testDim), nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WindowMs = 1000
	cfg.OutDim = 16
	cfg.ConfigHash = "test-config-hash"
	cfg.PluginID = "statetaped"
	cfg.PluginVersion = "1.0.0"
	cfg.ModelID = "sign-projection"
	cfg.ModelVersion = "v1"
	return cfg
}

// testEpochBaseMs anchors test fixture timestamps to a realistic epoch
// value: a real span's created_ts_ms (derived from its window's ts_end)
// must be a plausible wall-clock time, never a small relative offset.
const testEpochBaseMs = 1_700_000_000_000

func testState(id, frameID string, tsMs int64, text, app string) model.DerivedSSTState {
	return model.DerivedSSTState{
		StateID:     id,
		FrameID:     frameID,
		TSMs:        testEpochBaseMs + tsMs,
		Tokens:      []model.Token{{TokenID: "t1", Text: text, BBoxXYWH: [4]int{0, 0, 10, 10}}},
		VisibleApps: []string{app},
		Width:       1920,
		Height:      1080,
		ImageSHA256: "sha-" + id,
		FrameIndex:  0,
	}
}

func TestProcessProducesValidSpansAndEdges(t *testing.T) {
	states := []model.DerivedSSTState{
		testState("s1", "f1", 0, "hello world", "editor"),
		testState("s2", "f2", 500, "goodbye world", "editor"),
		testState("s3", "f3", 1500, "another window", "browser"),
	}

	b := New(testConfig(), fakeEmbedder{}, testDim)
	result, err := b.Process("session-1", states)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Spans) != 2 {
		t.Fatalf("expected 2 spans (windows of 1000ms over ts 0,500,1500), got %d", len(result.Spans))
	}
	if len(result.Edges) != 1 {
		t.Fatalf("expected 1 edge between 2 spans, got %d", len(result.Edges))
	}

	for _, span := range result.Spans {
		if span.StateID == "" {
			t.Error("span missing state_id")
		}
		if span.SessionID != "session-1" {
			t.Errorf("span session_id = %q, want session-1", span.SessionID)
		}
		if len(span.Evidence) == 0 {
			t.Error("span has no evidence")
		}
		if span.ZEmbedding.Dim != 16 {
			t.Errorf("span embedding dim = %d, want 16", span.ZEmbedding.Dim)
		}
		if span.Provenance.ConfigHash != "test-config-hash" {
			t.Errorf("span provenance config_hash = %q", span.Provenance.ConfigHash)
		}
	}

	edge := result.Edges[0]
	if edge.FromStateID != result.Spans[0].StateID || edge.ToStateID != result.Spans[1].StateID {
		t.Errorf("edge endpoints = %s -> %s, want %s -> %s", edge.FromStateID, edge.ToStateID, result.Spans[0].StateID, result.Spans[1].StateID)
	}
	if edge.PredError < 0 || edge.PredError > 2 {
		t.Errorf("edge pred_error = %v, out of [0,2]", edge.PredError)
	}

	delta, err := embedpack.Unpack(edge.DeltaEmbedding)
	if err != nil {
		t.Fatalf("unpack delta embedding: %v", err)
	}
	if len(delta) != 16 {
		t.Errorf("delta embedding dim = %d, want 16", len(delta))
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	states := []model.DerivedSSTState{
		testState("s1", "f1", 0, "hello world", "editor"),
		testState("s2", "f2", 500, "hello world", "editor"),
	}

	b := New(testConfig(), fakeEmbedder{}, testDim)
	r1, err := b.Process("session-1", states)
	if err != nil {
		t.Fatalf("Process (1): %v", err)
	}
	r2, err := b.Process("session-1", states)
	if err != nil {
		t.Fatalf("Process (2): %v", err)
	}

	if len(r1.Spans) != 1 || len(r2.Spans) != 1 {
		t.Fatalf("expected single merged window, got %d and %d", len(r1.Spans), len(r2.Spans))
	}
	if diff := cmp.Diff(r1.Spans, r2.Spans); diff != "" {
		t.Errorf("spans not byte-identical across runs (-r1 +r2):\n%s", diff)
	}
	if diff := cmp.Diff(r1.Edges, r2.Edges); diff != "" {
		t.Errorf("edges not byte-identical across runs (-r1 +r2):\n%s", diff)
	}
}

func TestProcessSkipsWindowsWithNoEvidence(t *testing.T) {
	b := New(testConfig(), fakeEmbedder{}, testDim)
	result, err := b.Process("session-1", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Spans) != 0 || len(result.Edges) != 0 {
		t.Errorf("expected no spans/edges for empty input, got %d spans, %d edges", len(result.Spans), len(result.Edges))
	}
}

func TestProcessSingleWindowHasNoEdges(t *testing.T) {
	states := []model.DerivedSSTState{
		testState("s1", "f1", 0, "hello", "editor"),
	}
	b := New(testConfig(), fakeEmbedder{}, testDim)
	result, err := b.Process("session-1", states)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(result.Spans))
	}
	if len(result.Edges) != 0 {
		t.Errorf("expected 0 edges for single span, got %d", len(result.Edges))
	}
}
