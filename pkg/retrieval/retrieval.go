package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/localtrace/statetape/pkg/capability"
	"github.com/localtrace/statetape/pkg/embedpack"
	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/model"
	"github.com/localtrace/statetape/pkg/policygate"
	"github.com/localtrace/statetape/pkg/statetape/vectorindex"
)

// SpanStore is the subset of the append-only state store retrieval
// needs: bounded span/edge lookups and drift detection.
type SpanStore interface {
	GetSpans(ctx context.Context, sessionID string, startMs, endMs int64, app string, limit int) ([]model.StateSpan, error)
	GetSpansByID(ctx context.Context, stateIDs []string) ([]model.StateSpan, error)
	GetEdgesForStates(ctx context.Context, stateIDs []string) ([]model.StateEdge, error)
	GetSnapshotMarker(ctx context.Context) (vectorindex.SnapshotMarker, error)
}

// VectorIndex is the subset of the approximate nearest-neighbor index
// retrieval needs.
type VectorIndex interface {
	Query(q []float32, filters vectorindex.Filters, k int, currentMarker vectorindex.SnapshotMarker, reload vectorindex.Reloader) ([]vectorindex.Hit, error)
}

// Query is one retrieval request.
type Query struct {
	Text      string
	SessionID string
	App       string
	StartISO  string
	EndISO    string
}

// Result is the final output of one retrieval call.
type Result struct {
	Hits  []model.RetrievalHit
	Trace Trace
}

// Service ties an embedder, vector index, and store together to answer
// retrieval queries.
type Service struct {
	Store    SpanStore
	Index    VectorIndex
	Embedder capability.TextEmbedder
	Policy   policygate.Config
	Config   Config
}

// Run executes the retrieval algorithm end to end: policy check, query
// embedding, index search with linear fallback, app filtering, and
// evidence attachment. It never returns an error for query-shaped
// problems — every failure mode degrades to an empty result plus a
// trace entry explaining why.
func (s *Service) Run(ctx context.Context, q Query) Result {
	start := time.Now()
	var trace Trace
	recordsScanned := 0

	result := func(hits []model.RetrievalHit) Result {
		trace.perf(time.Since(start).Milliseconds(), recordsScanned)
		return Result{Hits: hits, Trace: trace}
	}

	if strings.TrimSpace(q.Text) == "" {
		return result(nil)
	}

	decision := policygate.Decide(s.Policy)
	if q.App != "" && !policygate.AppAllowed(q.App, decision) {
		trace.add(TierAppBlocked, q.App, nil)
		return result(nil)
	}

	embedding, err := s.embedQuery(q.Text)
	if err != nil || len(embedding) == 0 {
		trace.add(TierEmptyQueryEmbedding, "", nil)
		return result(nil)
	}

	startMs, startOK := parseISOToMs(q.StartISO)
	endMs, endOK := parseISOToMs(q.EndISO)
	if q.StartISO != "" && !startOK {
		trace.add(TierEmptyQueryEmbedding, "unparseable start, treated as unset", nil)
	}
	if q.EndISO != "" && !endOK {
		trace.add(TierEmptyQueryEmbedding, "unparseable end, treated as unset", nil)
	}

	filters := vectorindex.Filters{SessionID: q.SessionID, App: q.App, StartMs: startMs, EndMs: endMs}

	hits, usedLinear, err := s.search(ctx, embedding, filters)
	if err != nil {
		trace.add(TierVectorIndexError, err.Error(), nil)
		return result(nil)
	}
	if usedLinear {
		trace.add(TierVectorIndexLinear, "", map[string]any{"hits": len(hits)})
	} else {
		trace.add(TierVectorIndex, "", map[string]any{"hits": len(hits)})
	}
	recordsScanned += len(hits)

	if len(hits) == 0 && s.Config.ModelVersionFallback {
		fallbackHits, ferr := s.modelVersionFallback(ctx, q.Text, filters)
		if ferr == nil && len(fallbackHits) > 0 {
			hits = fallbackHits
			trace.add(TierModelVersionFallback, "", map[string]any{"hits": len(hits)})
		}
	}

	hits = filterByScore(hits, s.Config.MinScore)
	hits = dedupeByStateID(hits)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].StateID < hits[j].StateID
	})
	if s.Config.TopK > 0 && len(hits) > s.Config.TopK {
		hits = hits[:s.Config.TopK]
	}
	if len(hits) == 0 {
		return result(nil)
	}

	spansByID, err := s.fetchSpansByID(ctx, q.SessionID, hits)
	if err != nil {
		trace.add(TierVectorIndexError, err.Error(), nil)
		return result(nil)
	}
	recordsScanned += len(spansByID)

	stateIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		stateIDs = append(stateIDs, h.StateID)
	}
	edges, err := s.Store.GetEdgesForStates(ctx, stateIDs)
	if err != nil {
		edges = nil
	}
	edgeEvidenceByState := edgeEvidenceIndex(edges)

	retrievalHits := make([]model.RetrievalHit, 0, len(hits))
	for _, h := range hits {
		span, ok := spansByID[h.StateID]
		if !ok {
			continue
		}
		if !policygate.AppAllowed(span.SummaryFeatures.App, decision) {
			continue
		}

		evidence := mergeEvidence(span.Evidence, edgeEvidenceByState[h.StateID])

		retrievalHits = append(retrievalHits, model.RetrievalHit{
			StateID:         span.StateID,
			Score:           h.Score,
			TSStartMs:       span.TSStartMs,
			TSEndMs:         span.TSEndMs,
			SummaryFeatures: span.SummaryFeatures,
			Evidence:        evidence,
			Provenance:      span.Provenance,
		})
	}

	return result(retrievalHits)
}

func (s *Service) embedQuery(text string) ([]float32, error) {
	vec, err := s.Embedder.Embed(text)
	if err != nil {
		return nil, err
	}
	return l2Normalize(vec), nil
}

func (s *Service) search(ctx context.Context, q []float32, filters vectorindex.Filters) ([]vectorindex.Hit, bool, error) {
	reload := func() ([]model.StateSpan, vectorindex.SnapshotMarker, error) {
		marker, merr := s.Store.GetSnapshotMarker(ctx)
		if merr != nil {
			return nil, vectorindex.SnapshotMarker{}, merr
		}
		limit := s.Config.LinearFallbackLimit
		if limit <= 0 {
			limit = 200
		}
		spans, serr := s.Store.GetSpans(ctx, filters.SessionID, 0, 0, filters.App, limit)
		if serr != nil {
			return nil, vectorindex.SnapshotMarker{}, serr
		}
		return spans, marker, nil
	}

	currentMarker, err := s.Store.GetSnapshotMarker(ctx)
	if err != nil {
		return nil, false, err
	}

	hits, err := s.Index.Query(q, filters, s.Config.TopK, currentMarker, reload)
	if err != nil {
		return nil, false, err
	}
	if len(hits) > 0 {
		return hits, false, nil
	}

	limit := s.Config.LinearFallbackLimit
	if limit <= 0 {
		limit = 200
	}
	if limit < s.Config.TopK {
		limit = s.Config.TopK
	}
	spans, err := s.Store.GetSpans(ctx, filters.SessionID, filters.StartMs, filters.EndMs, filters.App, limit)
	if err != nil {
		return nil, false, err
	}

	linear := make([]vectorindex.Hit, 0, len(spans))
	for _, span := range spans {
		vec, uerr := unpackEmbedding(span)
		if uerr != nil {
			continue
		}
		linear = append(linear, vectorindex.Hit{StateID: span.StateID, Score: cosine(q, vec)})
	}
	return linear, true, nil
}

func (s *Service) modelVersionFallback(ctx context.Context, queryText string, filters vectorindex.Filters) ([]vectorindex.Hit, error) {
	projected := hashing.SignProject(s.Config.ConfigHash, mustEmbed(s.Embedder, queryText), 768)
	hits, _, err := s.search(ctx, projected, filters)
	if err != nil {
		return nil, err
	}

	limit := s.Config.LinearFallbackLimit
	if limit <= 0 {
		limit = 200
	}
	spans, err := s.Store.GetSpans(ctx, filters.SessionID, filters.StartMs, filters.EndMs, filters.App, limit)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.StateSpan, len(spans))
	for _, span := range spans {
		byID[span.StateID] = span
	}

	filtered := make([]vectorindex.Hit, 0, len(hits))
	for _, h := range hits {
		span, ok := byID[h.StateID]
		if !ok {
			continue
		}
		if span.Provenance.ModelVersion == s.Config.CurrentModelVersion {
			continue
		}
		filtered = append(filtered, h)
	}
	return filtered, nil
}

func mustEmbed(embedder capability.TextEmbedder, text string) []float32 {
	vec, err := embedder.Embed(text)
	if err != nil {
		return nil
	}
	return l2Normalize(vec)
}

func (s *Service) fetchSpansByID(ctx context.Context, sessionID string, hits []vectorindex.Hit) (map[string]model.StateSpan, error) {
	out := make(map[string]model.StateSpan, len(hits))
	if len(hits) == 0 {
		return out, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.StateID
	}
	spans, err := s.Store.GetSpansByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, span := range spans {
		if sessionID != "" && span.SessionID != sessionID {
			continue
		}
		out[span.StateID] = span
	}
	return out, nil
}

func unpackEmbedding(span model.StateSpan) ([]float32, error) {
	return embedpack.Unpack(span.ZEmbedding)
}

func filterByScore(hits []vectorindex.Hit, minScore float64) []vectorindex.Hit {
	if minScore <= 0 {
		return hits
	}
	out := make([]vectorindex.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= minScore {
			out = append(out, h)
		}
	}
	return out
}

func dedupeByStateID(hits []vectorindex.Hit) []vectorindex.Hit {
	seen := make(map[string]struct{}, len(hits))
	out := make([]vectorindex.Hit, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.StateID]; ok {
			continue
		}
		seen[h.StateID] = struct{}{}
		out = append(out, h)
	}
	return out
}

type evidenceKey struct {
	mediaID    string
	tsStart    int64
	tsEnd      int64
	frameIndex int
}

func mergeEvidence(spanEvidence []model.EvidenceRef, edgeEvidence []model.EvidenceRef) []model.EvidenceRef {
	seen := make(map[evidenceKey]struct{})
	var merged []model.EvidenceRef
	add := func(refs []model.EvidenceRef) {
		for _, ref := range refs {
			key := evidenceKey{ref.MediaID, ref.TSStartMs, ref.TSEndMs, ref.FrameIndex}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, ref)
		}
	}
	add(spanEvidence)
	add(edgeEvidence)

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].TSStartMs != merged[j].TSStartMs {
			return merged[i].TSStartMs < merged[j].TSStartMs
		}
		return merged[i].MediaID < merged[j].MediaID
	})
	return merged
}

func edgeEvidenceIndex(edges []model.StateEdge) map[string][]model.EvidenceRef {
	out := make(map[string][]model.EvidenceRef)
	for _, e := range edges {
		out[e.FromStateID] = append(out[e.FromStateID], e.Evidence...)
		out[e.ToStateID] = append(out[e.ToStateID], e.Evidence...)
	}
	return out
}

// parseISOToMs parses an ISO-8601 timestamp (normalizing a trailing Z
// to +00:00) into epoch milliseconds. The second return is false when
// s is unparseable or empty, in which case the caller treats the bound
// as unset.
func parseISOToMs(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	normalized := s
	if strings.HasSuffix(normalized, "Z") {
		normalized = strings.TrimSuffix(normalized, "Z") + "+00:00"
	}
	t, err := time.Parse(time.RFC3339, normalized)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, f := range a {
		na += float64(f) * float64(f)
	}
	for _, f := range b {
		nb += float64(f) * float64(f)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
