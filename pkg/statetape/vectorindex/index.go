package vectorindex

import (
	"encoding/base64"
	"math"
	"sort"
	"sync"

	"github.com/localtrace/statetape/pkg/embedpack"
	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/model"
)

// bucketBits is how many leading vector dimensions contribute to the
// sign-bucket key.
const bucketBits = 16

// SnapshotMarker mirrors the backing store's drift-detection summary.
// It is declared independently here so this package has no import
// dependency on the store package; callers construct one from whatever
// store-level marker they hold.
type SnapshotMarker struct {
	SpanCount           int64
	MaxTSEndMs          int64
	LatestStateID       string
	LatestEmbeddingHash string
	LatestModelVersion  string
}

// Entry is one indexed span.
type Entry struct {
	Vector        []float32
	EmbeddingHash string
	ModelVersion  string
	SessionID     string
	TSStartMs     int64
	TSEndMs       int64
	App           string
}

// Filters constrains a query to a subset of indexed spans.
type Filters struct {
	SessionID string // exact match when non-empty
	StartMs   int64  // time-overlap lower bound; 0 means unset
	EndMs     int64  // time-overlap upper bound; 0 means unset
	App       string // exact match when non-empty
}

// Hit is one scored query result.
type Hit struct {
	StateID string
	Score   float64
}

// Index is the in-memory approximate nearest neighbor index over
// state-span embeddings.
type Index struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	buckets  map[uint16][]string // sorted state_ids per bucket
	marker   SnapshotMarker
	maxCandidates int
}

// New creates an empty index. maxCandidates bounds how many state ids
// bucket expansion may gather before scoring; 0 selects a sensible
// default.
func New(maxCandidates int) *Index {
	if maxCandidates <= 0 {
		maxCandidates = 512
	}
	return &Index{
		entries:       make(map[string]Entry),
		buckets:       make(map[uint16][]string),
		maxCandidates: maxCandidates,
	}
}

// IndexSpans replaces the index contents with the given spans, under
// the given snapshot marker. Embeddings are decoded from their packed
// form and L2-normalized on load.
func (idx *Index) IndexSpans(spans []model.StateSpan, marker SnapshotMarker) error {
	entries := make(map[string]Entry, len(spans))
	buckets := make(map[uint16][]string)

	for _, span := range spans {
		vec, err := embedpack.Unpack(span.ZEmbedding)
		if err != nil {
			return err
		}
		vec = normalize(vec)

		rawEmbedding, err := base64.StdEncoding.DecodeString(span.ZEmbedding.Blob)
		if err != nil {
			return err
		}

		entry := Entry{
			Vector:        vec,
			EmbeddingHash: hashing.HashBytes(rawEmbedding),
			ModelVersion:  span.Provenance.ModelVersion,
			SessionID:     span.SessionID,
			TSStartMs:     span.TSStartMs,
			TSEndMs:       span.TSEndMs,
			App:           span.SummaryFeatures.App,
		}
		entries[span.StateID] = entry

		key := bucketKey(vec)
		buckets[key] = append(buckets[key], span.StateID)
	}
	for key := range buckets {
		sort.Strings(buckets[key])
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.buckets = buckets
	idx.marker = marker
	idx.mu.Unlock()
	return nil
}

// Marker returns the marker the index was last loaded under.
func (idx *Index) Marker() SnapshotMarker {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.marker
}

// Reloader fetches every span currently in the backing store plus its
// fresh snapshot marker, for staleness recovery.
type Reloader func() ([]model.StateSpan, SnapshotMarker, error)

// Query runs an approximate nearest-neighbor search for q, filtered and
// capped to k results. currentMarker is the freshly observed store
// marker; if it diverges from the index's loaded marker, the index
// reloads via reload before querying. If markers still diverge after
// reload, Query returns an empty result rather than serving data that
// may not match what's in the store.
func (idx *Index) Query(q []float32, filters Filters, k int, currentMarker SnapshotMarker, reload Reloader) ([]Hit, error) {
	idx.mu.RLock()
	stale := idx.marker != currentMarker
	idx.mu.RUnlock()

	if stale {
		spans, marker, err := reload()
		if err != nil {
			return nil, err
		}
		if err := idx.IndexSpans(spans, marker); err != nil {
			return nil, err
		}
		if marker != currentMarker {
			return nil, nil
		}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	qn := normalize(q)
	candidates := idx.candidateIDs(qn)

	type scored struct {
		id    string
		score float64
	}
	var results []scored
	for _, id := range candidates {
		entry, ok := idx.entries[id]
		if !ok {
			continue
		}
		if !passesFilters(entry, filters) {
			continue
		}
		results = append(results, scored{id: id, score: cosine(qn, entry.Vector)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{StateID: r.id, Score: r.score}
	}
	return hits, nil
}

// candidateIDs gathers the query bucket, its single-bit-flip neighbors,
// and (if still short of maxCandidates) a lexicographic extension over
// every indexed id, all capped at maxCandidates. It never falls back to
// an unbounded full scan.
func (idx *Index) candidateIDs(q []float32) []string {
	key := bucketKey(q)
	seen := make(map[string]struct{})
	var out []string

	add := func(ids []string) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			if len(out) >= idx.maxCandidates {
				return
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	add(idx.buckets[key])
	for bit := 0; bit < bucketBits && len(out) < idx.maxCandidates; bit++ {
		add(idx.buckets[key^(1<<uint(bit))])
	}

	if len(out) < idx.maxCandidates {
		allIDs := make([]string, 0, len(idx.entries))
		for id := range idx.entries {
			allIDs = append(allIDs, id)
		}
		sort.Strings(allIDs)
		add(allIDs)
	}

	return out
}

func passesFilters(e Entry, f Filters) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.App != "" && e.App != f.App {
		return false
	}
	if f.StartMs > 0 && e.TSEndMs < f.StartMs {
		return false
	}
	if f.EndMs > 0 && e.TSStartMs > f.EndMs {
		return false
	}
	return true
}

func bucketKey(v []float32) uint16 {
	var key uint16
	for i := 0; i < bucketBits && i < len(v); i++ {
		if v[i] >= 0 {
			key |= 1 << uint(i)
		}
	}
	return key
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return append([]float32(nil), v...)
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
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
