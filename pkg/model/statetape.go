package model

// EmbeddingBlob is a packed embedding vector: little-endian float16 bytes,
// base64-encoded, tagged with its dimensionality and element type so a
// reader can unpack it without external context.
type EmbeddingBlob struct {
	Dim   int    `json:"dim"`
	Dtype string `json:"dtype"` // "f16"
	Blob  string `json:"blob"`  // base64
}

// EvidenceRef is a locator plus integrity handle into the media/derived
// stores: enough to re-fetch and verify the exact bytes a claim is
// grounded on.
type EvidenceRef struct {
	MediaID         string    `json:"media_id"`
	TSStartMs       int64     `json:"ts_start_ms"`
	TSEndMs         int64     `json:"ts_end_ms"`
	FrameIndex      int       `json:"frame_index"`
	BBoxXYWH        [4]int    `json:"bbox_xywh"`
	TextSpan        *TextSpan `json:"text_span,omitempty"`
	SHA256          string    `json:"sha256"`
	RedactionApplied bool     `json:"redaction_applied"`
}

// ProvenanceRecord is mandatory on every span and edge: full lineage of
// the plugin, model, and inputs that produced the record, plus a content
// hash of the producing configuration.
type ProvenanceRecord struct {
	ProducerPluginID    string   `json:"producer_plugin_id"`
	ProducerPluginVersion string `json:"producer_plugin_version"`
	ModelID             string   `json:"model_id"`
	ModelVersion        string   `json:"model_version"`
	ConfigHash          string   `json:"config_hash"`
	InputArtifactIDs    []string `json:"input_artifact_ids"` // sorted
	CreatedTSMs         int64    `json:"created_ts_ms"`
}

// SummaryFeatures is the compact, human-scannable summary attached to a
// span: the dominant app, a hash of its window title, and the most
// frequent entity tokens observed in the window.
type SummaryFeatures struct {
	App             string   `json:"app"`
	WindowTitleHash string   `json:"window_title_hash"`
	TopEntities     []string `json:"top_entities"` // at most 5
}

// StateSpan is the core entity of the state tape: a time window of
// consecutive structured states, pooled into one embedding with full
// evidence and provenance.
//
// Invariants: TSStartMs <= TSEndMs; Evidence is non-empty; Provenance is
// complete (see pkg/contracts).
type StateSpan struct {
	StateID         string           `json:"state_id"`
	SessionID       string           `json:"session_id"`
	TSStartMs       int64            `json:"ts_start_ms"`
	TSEndMs         int64            `json:"ts_end_ms"`
	ZEmbedding      EmbeddingBlob    `json:"z_embedding"`
	SummaryFeatures SummaryFeatures  `json:"summary_features"`
	Evidence        []EvidenceRef    `json:"evidence"` // at most max_evidence_refs
	Provenance      ProvenanceRecord `json:"provenance"`
}

// StateEdge is a pairwise transition between two consecutive spans,
// carrying the delta embedding and a prediction error in [0, 2].
//
// Invariants: FromStateID != ToStateID; both referenced spans must
// exist in the store.
type StateEdge struct {
	EdgeID        string           `json:"edge_id"`
	FromStateID   string           `json:"from_state_id"`
	ToStateID     string           `json:"to_state_id"`
	DeltaEmbedding EmbeddingBlob   `json:"delta_embedding"`
	PredError     float64          `json:"pred_error"` // 1 - cosine(prev, curr), in [0, 2]
	Evidence      []EvidenceRef    `json:"evidence"`    // inherited from the current span
	Provenance    ProvenanceRecord `json:"provenance"`
}
