package builder

import (
	"fmt"
	"math"
	"sort"

	"github.com/localtrace/statetape/pkg/capability"
	"github.com/localtrace/statetape/pkg/contracts"
	"github.com/localtrace/statetape/pkg/embedpack"
	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/model"
)

// Encoder is the optional learned-encoder hook. When set
// on a Builder, Process replaces plain sign-bit projection with the
// encoder's own encode-then-project pipeline, and its identity replaces
// the static plugin model id/version in provenance.
type Encoder interface {
	Embed(features []float32, outDim int) ([]float32, error)
	ModelID() string
	ModelVersionOf() string
}

// Builder converts structured-state batches into validated spans and
// edges.
type Builder struct {
	cfg       Config
	embedder  capability.TextEmbedder
	nativeDim int

	// Encoder, when non-nil, is used in place of hashing.SignProject for
	// the final embedding step; an Encoder error fails Process.
	Encoder Encoder
}

// New creates a Builder. nativeDim is the text embedder's native output
// dimension; vision/layout/input feature vectors are generated at the
// same dimension before pooling.
func New(cfg Config, embedder capability.TextEmbedder, nativeDim int) *Builder {
	return &Builder{cfg: cfg, embedder: embedder, nativeDim: nativeDim}
}

// Result is the output of one Process call.
type Result struct {
	Spans []model.StateSpan
	Edges []model.StateEdge
}

// Process windows sessionID's states, pools features per window,
// projects the pooled vector to cfg.OutDim dimensions (768 by default),
// and emits validated StateSpan/StateEdge records
// with complete evidence and provenance.
func (b *Builder) Process(sessionID string, states []model.DerivedSSTState) (Result, error) {
	windows := windowStates(states, b.cfg)

	var built []model.StateSpan
	for _, window := range windows {
		evidence := assembleEvidence(window, b.cfg.MaxEvidenceRefs)
		if len(evidence) == 0 {
			continue
		}

		vec, err := b.poolWindowVector(window)
		if err != nil {
			return Result{}, fmt.Errorf("builder: pool window vector: %w", err)
		}

		modelID, modelVersion := b.cfg.ModelID, b.cfg.ModelVersion
		var projected []float32
		if b.Encoder != nil {
			projected, err = b.Encoder.Embed(vec, b.cfg.OutDim)
			if err != nil {
				return Result{}, fmt.Errorf("builder: encoder embed: %w", err)
			}
			modelID, modelVersion = b.Encoder.ModelID(), b.Encoder.ModelVersionOf()
		} else {
			projected = hashing.SignProject(b.cfg.ConfigHash, vec, b.cfg.OutDim)
		}

		inputIDs := make([]string, 0, len(window))
		for _, s := range window {
			inputIDs = append(inputIDs, s.StateID)
		}
		sort.Strings(inputIDs)

		cacheKey, err := hashing.CacheKey(b.cfg.PluginID, b.cfg.PluginVersion, modelVersion, b.cfg.ConfigHash, inputIDs)
		if err != nil {
			return Result{}, fmt.Errorf("builder: compute cache key: %w", err)
		}

		tsStart := window[0].TSMs
		tsEnd := window[len(window)-1].TSMs

		stateID, err := hashing.DeterministicIDString(map[string]any{
			"kind":        "state_span",
			"session_id":  sessionID,
			"ts_start_ms": tsStart,
			"ts_end_ms":   tsEnd,
			"cache_key":   cacheKey,
		})
		if err != nil {
			return Result{}, fmt.Errorf("builder: compute span id: %w", err)
		}

		span := model.StateSpan{
			StateID:         stateID,
			SessionID:       sessionID,
			TSStartMs:       tsStart,
			TSEndMs:         tsEnd,
			ZEmbedding:      embedpack.Pack(projected),
			SummaryFeatures: summaryFeatures(window),
			Evidence:        evidence,
			Provenance: model.ProvenanceRecord{
				ProducerPluginID:      b.cfg.PluginID,
				ProducerPluginVersion: b.cfg.PluginVersion,
				ModelID:               modelID,
				ModelVersion:          modelVersion,
				ConfigHash:            b.cfg.ConfigHash,
				InputArtifactIDs:      inputIDs,
				CreatedTSMs:           tsEnd,
			},
		}

		if err := contracts.ValidateSpan(span); err != nil {
			return Result{}, err
		}
		built = append(built, span)
	}

	sort.SliceStable(built, func(i, j int) bool {
		if built[i].TSStartMs != built[j].TSStartMs {
			return built[i].TSStartMs < built[j].TSStartMs
		}
		return built[i].StateID < built[j].StateID
	})

	edges, err := b.buildEdges(built)
	if err != nil {
		return Result{}, err
	}

	return Result{Spans: built, Edges: edges}, nil
}

func (b *Builder) buildEdges(spans []model.StateSpan) ([]model.StateEdge, error) {
	if len(spans) < 2 {
		return nil, nil
	}

	edges := make([]model.StateEdge, 0, len(spans)-1)
	for i := 1; i < len(spans); i++ {
		prev, curr := spans[i-1], spans[i]

		prevVec, err := embedpack.Unpack(prev.ZEmbedding)
		if err != nil {
			return nil, fmt.Errorf("builder: unpack previous embedding: %w", err)
		}
		currVec, err := embedpack.Unpack(curr.ZEmbedding)
		if err != nil {
			return nil, fmt.Errorf("builder: unpack current embedding: %w", err)
		}

		delta := make([]float32, len(currVec))
		for j := range delta {
			delta[j] = at(currVec, j) - at(prevVec, j)
		}
		predError := 1 - cosineSimilarity(prevVec, currVec)

		edgeID, err := hashing.DeterministicIDString(map[string]any{
			"kind":          "state_edge",
			"from":          prev.StateID,
			"to":            curr.StateID,
			"config_hash":   b.cfg.ConfigHash,
			"model_version": curr.Provenance.ModelVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("builder: compute edge id: %w", err)
		}

		edge := model.StateEdge{
			EdgeID:         edgeID,
			FromStateID:    prev.StateID,
			ToStateID:      curr.StateID,
			DeltaEmbedding: embedpack.Pack(delta),
			PredError:      clamp(predError, 0, 2),
			Evidence:       curr.Evidence,
			Provenance:     curr.Provenance,
		}
		if err := contracts.ValidateEdge(edge); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func (b *Builder) poolWindowVector(window []model.DerivedSSTState) ([]float32, error) {
	perState := make([][]float32, 0, len(window))
	for _, state := range window {
		text, err := textVector(b.embedder, state)
		if err != nil {
			return nil, err
		}
		dim := len(text)
		if dim == 0 {
			dim = b.nativeDim
			text = make([]float32, dim)
		}
		vision := visionVector(state, dim)
		layout := layoutVector(state, dim)
		input := inputVector(state, dim)
		perState = append(perState, mergeStateVector(text, vision, layout, input, b.cfg.Weights))
	}
	return l2Normalize(meanVector(perState)), nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, f := range a {
		normA += float64(f) * float64(f)
	}
	for _, f := range b {
		normB += float64(f) * float64(f)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
