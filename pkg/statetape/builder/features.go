package builder

import (
	"math"
	"sort"
	"strings"

	"github.com/localtrace/statetape/pkg/capability"
	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/model"
)

// textVector embeds the state's tokens, normalized and concatenated in
// (bbox y, bbox x, token_id) order, using the configured text embedder.
func textVector(embedder capability.TextEmbedder, state model.DerivedSSTState) ([]float32, error) {
	tokens := make([]model.Token, len(state.Tokens))
	copy(tokens, state.Tokens)
	sort.SliceStable(tokens, func(i, j int) bool {
		yi, xi := tokens[i].BBoxXYWH[1], tokens[i].BBoxXYWH[0]
		yj, xj := tokens[j].BBoxXYWH[1], tokens[j].BBoxXYWH[0]
		if yi != yj {
			return yi < yj
		}
		if xi != xj {
			return xi < xj
		}
		return tokens[i].TokenID < tokens[j].TokenID
	})

	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		norm := strings.ToLower(strings.TrimSpace(tok.Text))
		if norm == "" {
			continue
		}
		parts = append(parts, norm)
	}

	return embedder.Embed(strings.Join(parts, " "))
}

// visionVector derives a deterministic hash-to-unit-vector from the
// state's image content hash.
func visionVector(state model.DerivedSSTState, dim int) []float32 {
	return hashToUnitVector("vision:"+state.ImageSHA256, dim)
}

// layoutVector derives a deterministic hash-to-unit-vector from the
// sorted set of distinct element-graph node types.
func layoutVector(state model.DerivedSSTState, dim int) []float32 {
	if state.ElementGraph == nil {
		return hashToUnitVector("layout:", dim)
	}
	seen := make(map[string]struct{})
	for _, node := range state.ElementGraph.Nodes {
		seen[node.NodeType] = struct{}{}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return hashToUnitVector("layout:"+strings.Join(types, ","), dim)
}

// inputVector derives a deterministic hash-to-unit-vector from the
// state's focused element id.
func inputVector(state model.DerivedSSTState, dim int) []float32 {
	return hashToUnitVector("input:"+state.FocusElementID, dim)
}

// hashToUnitVector expands seed into a dim-length Rademacher (+/-1)
// vector using the same deterministic sign-bit primitive the embedding
// projection uses, then L2-normalizes it.
func hashToUnitVector(seed string, dim int) []float32 {
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		if hashing.SignProjectionBit(seed, i, 0) > 0 {
			vec[i] = 1
		} else {
			vec[i] = -1
		}
	}
	return l2Normalize(vec)
}

// mergeStateVector combines the per-modality vectors of one state into
// a single weighted, L2-normalized merged vector.
func mergeStateVector(text, vision, layout, input []float32, weights FeatureWeights) []float32 {
	dim := len(text)
	merged := make([]float32, dim)
	for i := 0; i < dim; i++ {
		v := weights.Text*float64(at(text, i)) +
			weights.Vision*float64(at(vision, i)) +
			weights.Layout*float64(at(layout, i)) +
			weights.Input*float64(at(input, i))
		merged[i] = float32(v)
	}
	return l2Normalize(merged)
}

func at(vec []float32, i int) float32 {
	if i < 0 || i >= len(vec) {
		return 0
	}
	return vec[i]
}

// meanVector computes the coordinate-wise mean of a non-empty set of
// equal-length vectors.
func meanVector(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	out := make([]float32, dim)
	for _, v := range vecs {
		for i := 0; i < dim; i++ {
			out[i] += at(v, i)
		}
	}
	n := float32(len(vecs))
	for i := range out {
		out[i] /= n
	}
	return out
}

func l2Normalize(v []float32) []float32 {
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
