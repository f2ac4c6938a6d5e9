package retrieval

// Config controls one retrieval call's scoring and fallback behavior.
type Config struct {
	TopK                  int
	MinScore              float64
	LinearFallbackLimit   int // bound passed to GetSpans when no index hits are found
	ModelVersionFallback  bool
	ConfigHash            string // sign-projection seed when no learned encoder is loaded
	CurrentModelVersion   string
}

// DefaultConfig returns retrieval's default tuning.
func DefaultConfig() Config {
	return Config{
		TopK:                10,
		MinScore:            0,
		LinearFallbackLimit: 200,
	}
}
