package model

import "time"

// Derived text record kinds.
const (
	DerivedTextKindOCR = "derived.text.ocr"
	DerivedTextKindVLM = "derived.text.vlm"
)

// DerivedTextRecord is the output of one OCR or VLM extraction over a
// capture frame. Re-derivation is idempotent: a new record is only
// written when the target id is absent (see pkg/idle).
type DerivedTextRecord struct {
	RecordID string `json:"record_id"`
	Kind     string `json:"kind"` // DerivedTextKindOCR | DerivedTextKindVLM

	RunID      string    `json:"run_id"`
	TSUTC      time.Time `json:"ts_utc"`
	SourceID   string    `json:"source_id"` // parent evidence record id
	ProviderID string    `json:"provider_id"`
	Text       string    `json:"text"`

	SpanRef *TextSpan `json:"span_ref,omitempty"`

	// DerivationEdgeID back-links to the derivation_edge record produced
	// alongside this one, when one was emitted.
	DerivationEdgeID string `json:"derivation_edge_id,omitempty"`
}

// DerivationEdge links a derived record back to the evidence it was
// derived from, recording the method that produced it.
type DerivationEdge struct {
	EdgeID   string    `json:"edge_id"`
	ParentID string    `json:"parent_id"`
	ChildID  string    `json:"child_id"`
	Relation string    `json:"relation"`
	SpanRef  *TextSpan `json:"span_ref,omitempty"`
	Method   string    `json:"method"`
}

// TextSpan is a half-open [Start, End) character range into some text.
type TextSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Token is a single recognized text token within a structured state,
// positioned by bounding box and carrying an extraction confidence.
type Token struct {
	TokenID    string  `json:"token_id"`
	Text       string  `json:"text"`
	BBoxXYWH   [4]int  `json:"bbox_xywh"`
	Confidence float64 `json:"confidence"`
}

// ElementGraphNode is one node of a structured-state's optional UI
// element graph (layout hierarchy, widget tree, etc.).
type ElementGraphNode struct {
	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type"`
	ParentID string `json:"parent_id,omitempty"`
}

// ElementGraph is the full set of element nodes observed for one
// structured state, used by the state-tape builder's layout feature.
type ElementGraph struct {
	Nodes []ElementGraphNode `json:"nodes"`
}

// DerivedSSTState is an ordered, per-frame structured-screen-state
// record: text tokens, visible apps, and optional element graph,
// consumed by the state-tape builder to produce StateSpan/StateEdge
// records.
type DerivedSSTState struct {
	StateID string `json:"state_id"`
	FrameID string `json:"frame_id"`
	TSMs    int64  `json:"ts_ms"`

	Tokens       []Token       `json:"tokens"`
	VisibleApps  []string      `json:"visible_apps"`
	ElementGraph *ElementGraph `json:"element_graph,omitempty"`

	Width          int    `json:"width"`
	Height         int    `json:"height"`
	ImageSHA256    string `json:"image_sha256"`
	FrameIndex     int    `json:"frame_index"`
	FocusElementID string `json:"focus_element_id,omitempty"`
}
