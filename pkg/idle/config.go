package idle

// Config is the subset of processing.idle.* and processing.state_layer.*
// that governs one processor's sweep.
type Config struct {
	MaxItemsPerRun    int
	MaxSecondsPerRun  int
	EnableOCR         bool
	EnableVLM         bool
	SSTEnabled        bool
	StateLayerEnabled bool
	EmitFrameEvidence bool
	SegmentFrameIndex int
	DefaultProviderID string
}

// DefaultConfig returns the processor's default budgets and flags.
func DefaultConfig() Config {
	return Config{
		MaxItemsPerRun:    500,
		MaxSecondsPerRun:  30,
		EnableOCR:         true,
		EnableVLM:         false,
		SSTEnabled:        false,
		StateLayerEnabled: false,
		EmitFrameEvidence: true,
		SegmentFrameIndex: 0,
		DefaultProviderID: "default",
	}
}
