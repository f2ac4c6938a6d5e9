package retrieval

// Tier names one stage of a retrieval call's trace.
type Tier string

const (
	TierAppBlocked           Tier = "APP_BLOCKED"
	TierEmptyQueryEmbedding  Tier = "EMPTY_QUERY_EMBEDDING"
	TierVectorIndex          Tier = "VECTOR_INDEX"
	TierVectorIndexError     Tier = "VECTOR_INDEX_ERROR"
	TierVectorIndexLinear    Tier = "VECTOR_INDEX_LINEAR"
	TierModelVersionFallback Tier = "MODEL_VERSION_FALLBACK"
	TierPerf                 Tier = "PERF"
)

// Entry is one append-only trace record.
type Entry struct {
	Tier   Tier           `json:"tier"`
	Detail string         `json:"detail,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Trace accumulates the tiers a single retrieval call passed through.
type Trace struct {
	Entries []Entry `json:"entries"`
}

func (t *Trace) add(tier Tier, detail string, fields map[string]any) {
	t.Entries = append(t.Entries, Entry{Tier: tier, Detail: detail, Fields: fields})
}

// Perf appends the final performance entry every call records.
func (t *Trace) perf(wallMs int64, recordsScanned int) {
	t.add(TierPerf, "", map[string]any{
		"wall_clock_ms":   wallMs,
		"records_scanned": recordsScanned,
	})
}
