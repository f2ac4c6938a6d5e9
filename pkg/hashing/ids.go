package hashing

import (
	"sort"

	"github.com/google/uuid"
)

// DeterministicID computes the deterministic UUID for a set of semantic
// parts: UUID(SHA-256(canonical_json(parts))[:16]). The same parts always
// yield the same id, regardless of process, machine, or time, which is what
// lets state spans, state edges, derivation edges, and evidence-link rows
// be re-derived idempotently.
//
// parts should be a struct or map containing exactly the fields that
// define that id kind (e.g. {kind, session_id, ts_start_ms, ts_end_ms,
// cache_key} for a state span). Field order does not matter: canonicalization
// sorts object keys before hashing.
func DeterministicID(parts any) (uuid.UUID, error) {
	sum, err := SHA256Sum(parts)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], sum[:16])
	return id, nil
}

// DeterministicIDString is DeterministicID with the result rendered as a
// canonical UUID string, which is how ids are stored and compared
// throughout the system.
func DeterministicIDString(parts any) (string, error) {
	id, err := DeterministicID(parts)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CacheKey computes the cache_key used inside a StateSpan/StateEdge id: the
// SHA-256 hex digest of the canonical JSON of the producing config
// (plugin id, plugin version, model version, config hash, sorted input
// artifact ids).
func CacheKey(pluginID, pluginVersion, modelVersion, configHash string, inputArtifactIDs []string) (string, error) {
	sorted := append([]string(nil), inputArtifactIDs...)
	sort.Strings(sorted)
	return HashCanonical(map[string]any{
		"plugin_id":          pluginID,
		"plugin_version":     pluginVersion,
		"model_version":      modelVersion,
		"config_hash":        configHash,
		"input_artifact_ids": sorted,
	})
}
