package builder

// WindowingMode selects how consecutive states are grouped into spans.
type WindowingMode string

const (
	// WindowingFixedDuration closes a window once window_ms elapses
	// since its first state.
	WindowingFixedDuration WindowingMode = "fixed_duration"

	// WindowingHeuristicAppWindowChange additionally closes a window
	// when the leading visible app changes.
	WindowingHeuristicAppWindowChange WindowingMode = "heuristic_app_window_change"
)

// FeatureWeights weights each modality's pooled vector before they are
// summed into a per-state merged vector.
type FeatureWeights struct {
	Text   float64
	Vision float64
	Layout float64
	Input  float64
}

// DefaultFeatureWeights returns the default pooling weights.
func DefaultFeatureWeights() FeatureWeights {
	return FeatureWeights{Text: 1.0, Vision: 0.6, Layout: 0.4, Input: 0.2}
}

// Config configures one Process call.
type Config struct {
	WindowingMode   WindowingMode
	WindowMs        int64
	MaxEvidenceRefs int
	Weights         FeatureWeights

	// OutDim is the target embedding dimension after projection.
	OutDim int

	// ConfigHash identifies this builder configuration (hash of its
	// effective settings, computed by the caller). It seeds the
	// deterministic sign-projection and is recorded on every span/edge's
	// provenance, so the projection is reproducible across processes
	// that agree on the same configuration.
	ConfigHash string

	PluginID      string
	PluginVersion string
	ModelID       string
	ModelVersion  string
}

// DefaultConfig returns the default builder configuration. Callers must
// still set ConfigHash, PluginID/Version, and ModelID/Version from
// their own provenance context.
func DefaultConfig() Config {
	return Config{
		WindowingMode:   WindowingFixedDuration,
		WindowMs:        5000,
		MaxEvidenceRefs: 16,
		Weights:         DefaultFeatureWeights(),
		OutDim:          768,
	}
}
