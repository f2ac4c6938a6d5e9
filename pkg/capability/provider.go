package capability

import "sort"

// OCRResult is one recognized token extracted from an image by an OCR
// provider.
type OCRResult struct {
	Text       string
	BBoxXYWH   [4]int
	Confidence float64
}

// OCRExtractor is the contract every OCR capability provider implements.
type OCRExtractor interface {
	ExtractTokens(imageBytes []byte) ([]OCRResult, error)
}

// VLMResult is the structured output of a vision-language-model
// extraction over an image: text plus optional token/layout detail.
type VLMResult struct {
	Text   string
	Tokens []OCRResult
	Layout map[string]any
}

// VLMExtractor is the contract every VLM capability provider implements.
type VLMExtractor interface {
	Extract(imageBytes []byte) (VLMResult, error)
}

// EmbedderIdentity describes a text embedder provider's model, for
// provenance and cache-key purposes.
type EmbedderIdentity struct {
	ModelName     string
	BundleVersion string
	Dims          int
}

// TextEmbedder is the contract every text embedder capability provider
// implements. Identity is optional: providers that don't implement it
// are treated as having an unknown identity.
type TextEmbedder interface {
	Embed(text string) ([]float32, error)
}

// IdentifiableEmbedder is a TextEmbedder that can also report its model
// identity.
type IdentifiableEmbedder interface {
	TextEmbedder
	Identity() (EmbedderIdentity, error)
}

// ProviderIterator lets a capability expose more providers than a single
// value or map without committing to either shape up front.
type ProviderIterator interface {
	IterProviders() map[string]any
}

// Pair is one normalized (provider_id, provider) entry.
type Pair struct {
	ProviderID string
	Provider   any
}

// Normalize takes whatever shape a capability registry handed back for a
// capability name — a bare provider, a map[string]any of provider_id to
// provider, or a ProviderIterator — and returns a sorted, deterministic
// list of (provider_id, provider) pairs.
//
// When value is nil, Normalize returns an empty slice. When value is
// neither a map nor a ProviderIterator, it falls back to a single pair
// of value itself keyed by defaultProviderID, or by capabilityName when
// defaultProviderID is empty, matching the capability contract's
// introspection-failure fallback.
func Normalize(capabilityName string, value any, defaultProviderID string) []Pair {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case ProviderIterator:
		return sortedPairs(v.IterProviders())
	case map[string]any:
		return sortedPairs(v)
	default:
		id := defaultProviderID
		if id == "" {
			id = capabilityName
		}
		return []Pair{{ProviderID: id, Provider: value}}
	}
}

func sortedPairs(m map[string]any) []Pair {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pairs := make([]Pair, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, Pair{ProviderID: id, Provider: m[id]})
	}
	return pairs
}
