package idle

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/localtrace/statetape/pkg/capability"
	"github.com/localtrace/statetape/pkg/model"
	"github.com/localtrace/statetape/pkg/statetape/builder"
	"github.com/localtrace/statetape/pkg/store/media"
	"github.com/localtrace/statetape/pkg/store/metadata"
)

type memMetadata struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemMetadata() *memMetadata {
	return &memMetadata{data: make(map[string][]byte)}
}

func (m *memMetadata) PutNew(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return metadata.ErrKeyExists
	}
	m.data[key] = value
	return nil
}

func (m *memMetadata) PutReplace(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memMetadata) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, metadata.ErrKeyNotFound
	}
	return v, nil
}

func (m *memMetadata) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memMetadata) Close() error { return nil }

type memMedia struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemMedia() *memMedia {
	return &memMedia{data: make(map[string][]byte)}
}

func (m *memMedia) Put(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	id := fmt.Sprintf("%x", sum)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
	return id, nil
}

func (m *memMedia) Get(mediaID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[mediaID]
	if !ok {
		return nil, media.ErrNotFound
	}
	return v, nil
}

func (m *memMedia) Has(mediaID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[mediaID]
	return ok, nil
}

type fakeOCR struct{ text string }

func (f fakeOCR) ExtractTokens(imageBytes []byte) ([]capability.OCRResult, error) {
	return []capability.OCRResult{{Text: f.text, BBoxXYWH: [4]int{0, 0, 10, 10}, Confidence: 0.9}}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

type recordingStore struct {
	mu    sync.Mutex
	spans []model.StateSpan
	edges []model.StateEdge
}

func (r *recordingStore) InsertBatch(ctx context.Context, spans []model.StateSpan, edges []model.StateEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, spans...)
	r.edges = append(r.edges, edges...)
	return nil
}

func putSegmentRecord(store *memMetadata, runID, recordID, mediaID string) error {
	seg := model.EvidenceCaptureSegment{
		RecordID:    recordID,
		RunID:       runID,
		ContentHash: mediaID,
		ContentType: "image/png",
		Width:       100,
		Height:      100,
	}
	raw, err := json.Marshal(storedEvidence{RecordID: recordID, Kind: "segment", Segment: &seg})
	if err != nil {
		return err
	}
	return store.PutNew(recordID, raw)
}

func testProcessorConfig() Config {
	cfg := DefaultConfig()
	cfg.EnableOCR = true
	cfg.EnableVLM = false
	cfg.EmitFrameEvidence = true
	cfg.SegmentFrameIndex = 0
	return cfg
}

func TestProcessStepExtractsOCRAndEmitsDerivationEdge(t *testing.T) {
	md := newMemMetadata()
	mediaStore := newMemMedia()

	mediaID, err := mediaStore.Put([]byte("raw-frame-bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := putSegmentRecord(md, "run-1", "run-1/segment/0", mediaID); err != nil {
		t.Fatalf("putSegmentRecord: %v", err)
	}

	p := &Processor{
		RunID:        "run-1",
		Metadata:     md,
		Media:        mediaStore,
		Frames:       &FrameMaterializer{},
		OCRProviders: []capability.Pair{{ProviderID: "default", Provider: fakeOCR{text: "hello world"}}},
		Config:       testProcessorConfig(),
	}

	done, stats, err := p.ProcessStep(context.Background(), nil, 0, true)
	if err != nil {
		t.Fatalf("ProcessStep: %v", err)
	}
	if !done {
		t.Fatalf("expected done=true")
	}
	if stats.Processed != 1 {
		t.Fatalf("expected 1 processed, got %d", stats.Processed)
	}
	if stats.OKByKind[model.DerivedTextKindOCR] != 1 {
		t.Fatalf("expected 1 OCR success, got %d", stats.OKByKind[model.DerivedTextKindOCR])
	}

	frameRecordID := encodedFrameKey("run-1", "run-1/segment/0", 0)
	derivedID := fmt.Sprintf("run-1/%s/%s/%s", model.DerivedTextKindOCR, encodeComponent("default"), encodeComponent(frameRecordID))
	raw, err := md.Get(derivedID)
	if err != nil {
		t.Fatalf("Get derived text record: %v", err)
	}
	var record model.DerivedTextRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatalf("Unmarshal derived text record: %v", err)
	}
	if record.DerivationEdgeID == "" {
		t.Fatalf("expected derivation_edge_id to be set")
	}
	if _, err := md.Get(record.DerivationEdgeID); err != nil {
		t.Fatalf("expected derivation edge record to exist: %v", err)
	}
}

func TestProcessStepIsIdempotentOnRerun(t *testing.T) {
	md := newMemMetadata()
	mediaStore := newMemMedia()

	mediaID, _ := mediaStore.Put([]byte("raw-frame-bytes"))
	_ = putSegmentRecord(md, "run-1", "run-1/segment/0", mediaID)

	p := &Processor{
		RunID:        "run-1",
		Metadata:     md,
		Media:        mediaStore,
		Frames:       &FrameMaterializer{},
		OCRProviders: []capability.Pair{{ProviderID: "default", Provider: fakeOCR{text: "hello world"}}},
		Config:       testProcessorConfig(),
	}

	if _, _, err := p.ProcessStep(context.Background(), nil, 0, true); err != nil {
		t.Fatalf("first ProcessStep: %v", err)
	}
	_, stats, err := p.ProcessStep(context.Background(), nil, 0, true)
	if err != nil {
		t.Fatalf("second ProcessStep: %v", err)
	}
	if stats.Scanned != 0 {
		t.Fatalf("expected checkpoint to skip the already-visited record, scanned %d", stats.Scanned)
	}
}

func TestProcessStepSkipsPrivacyExcludedRecords(t *testing.T) {
	md := newMemMetadata()
	mediaStore := newMemMedia()

	seg := model.EvidenceCaptureSegment{
		RecordID:        "run-1/segment/0",
		RunID:           "run-1",
		PrivacyExcluded: true,
	}
	raw, _ := json.Marshal(storedEvidence{RecordID: seg.RecordID, Kind: "segment", Segment: &seg})
	if err := md.PutNew(seg.RecordID, raw); err != nil {
		t.Fatalf("PutNew: %v", err)
	}

	p := &Processor{
		RunID:        "run-1",
		Metadata:     md,
		Media:        mediaStore,
		Frames:       &FrameMaterializer{},
		OCRProviders: []capability.Pair{{ProviderID: "default", Provider: fakeOCR{text: "should not run"}}},
		Config:       testProcessorConfig(),
	}

	_, stats, err := p.ProcessStep(context.Background(), nil, 0, true)
	if err != nil {
		t.Fatalf("ProcessStep: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", stats.Skipped)
	}
	if stats.Processed != 0 {
		t.Fatalf("expected 0 processed, got %d", stats.Processed)
	}
}

func TestProcessStepDrivesStateTapeBuilder(t *testing.T) {
	md := newMemMetadata()
	mediaStore := newMemMedia()

	mediaID, _ := mediaStore.Put([]byte("raw-frame-bytes"))
	_ = putSegmentRecord(md, "run-1", "run-1/segment/0", mediaID)

	builderCfg := builder.DefaultConfig()
	builderCfg.WindowMs = 1000
	builderCfg.OutDim = 8
	builderCfg.ConfigHash = "test-hash"
	builderCfg.PluginID = "statetaped"
	builderCfg.PluginVersion = "1.0.0"
	builderCfg.ModelID = "sign-projection"
	builderCfg.ModelVersion = "v1"

	store := &recordingStore{}

	cfg := testProcessorConfig()
	cfg.SSTEnabled = true
	cfg.StateLayerEnabled = true

	p := &Processor{
		RunID:        "run-1",
		Metadata:     md,
		Media:        mediaStore,
		Frames:       &FrameMaterializer{},
		OCRProviders: []capability.Pair{{ProviderID: "default", Provider: fakeOCR{text: "hello world"}}},
		Builder:      builder.New(builderCfg, fakeEmbedder{}, 4),
		StateStore:   store,
		ModelVersion: "v1",
		ConfigHash:   "test-hash",
		Config:       cfg,
	}

	done, stats, err := p.ProcessStep(context.Background(), nil, 0, true)
	if err != nil {
		t.Fatalf("ProcessStep: %v", err)
	}
	if !done {
		t.Fatalf("expected done=true")
	}
	if stats.StateSpans != 1 {
		t.Fatalf("expected 1 state span, got %d", stats.StateSpans)
	}
	if len(store.spans) != 1 {
		t.Fatalf("expected 1 span inserted, got %d", len(store.spans))
	}
}

