package contracts

import "github.com/localtrace/statetape/pkg/model"

// ValidateProvenance checks that a ProvenanceRecord carries every field
// required for it to be complete: producer plugin identity, config
// hash, and a creation timestamp. Model id/version are intentionally not
// required here — a producer without a learned model (e.g. the
// sign-projection fallback) leaves them empty.
func ValidateProvenance(recordID string, p model.ProvenanceRecord) error {
	if p.ProducerPluginID == "" {
		return newValidationError(recordID, "provenance.producer_plugin_id", "must not be empty")
	}
	if p.ProducerPluginVersion == "" {
		return newValidationError(recordID, "provenance.producer_plugin_version", "must not be empty")
	}
	if p.ConfigHash == "" {
		return newValidationError(recordID, "provenance.config_hash", "must not be empty")
	}
	if p.CreatedTSMs <= 0 {
		return newValidationError(recordID, "provenance.created_ts_ms", "must be positive")
	}
	return nil
}

// ValidateEvidenceRef checks the required locator+integrity fields of a
// single EvidenceRef.
func ValidateEvidenceRef(recordID string, ref model.EvidenceRef) error {
	if ref.MediaID == "" {
		return newValidationError(recordID, "evidence.media_id", "must not be empty")
	}
	if ref.TSStartMs > ref.TSEndMs {
		return newValidationError(recordID, "evidence.ts_start_ms", "must not be after ts_end_ms")
	}
	if ref.SHA256 == "" {
		return newValidationError(recordID, "evidence.sha256", "must not be empty")
	}
	return nil
}

// ValidateSpan enforces StateSpan's invariants: ts_start_ms <=
// ts_end_ms, non-empty evidence, valid evidence refs, and complete
// provenance.
func ValidateSpan(span model.StateSpan) error {
	if span.StateID == "" {
		return newValidationError("", "state_id", "must not be empty")
	}
	if span.TSStartMs > span.TSEndMs {
		return newValidationError(span.StateID, "ts_start_ms", "must not be after ts_end_ms")
	}
	if len(span.Evidence) == 0 {
		return newValidationError(span.StateID, "evidence", "span must carry at least one evidence reference")
	}
	if len(span.SummaryFeatures.TopEntities) > 5 {
		return newValidationError(span.StateID, "summary_features.top_entities", "must contain at most 5 entries")
	}
	for _, ref := range span.Evidence {
		if err := ValidateEvidenceRef(span.StateID, ref); err != nil {
			return err
		}
	}
	return ValidateProvenance(span.StateID, span.Provenance)
}

// ValidateEdge enforces StateEdge's invariants: distinct endpoints,
// prediction error within [0, 2], valid evidence, and complete
// provenance. It does not check that the referenced spans exist in the
// store; that is the store's responsibility at insert time.
func ValidateEdge(edge model.StateEdge) error {
	if edge.EdgeID == "" {
		return newValidationError("", "edge_id", "must not be empty")
	}
	if edge.FromStateID == "" || edge.ToStateID == "" {
		return newValidationError(edge.EdgeID, "from_state_id/to_state_id", "must not be empty")
	}
	if edge.FromStateID == edge.ToStateID {
		return newValidationError(edge.EdgeID, "from_state_id", "must differ from to_state_id")
	}
	if edge.PredError < 0 || edge.PredError > 2 {
		return newValidationError(edge.EdgeID, "pred_error", "must be in [0, 2]")
	}
	for _, ref := range edge.Evidence {
		if err := ValidateEvidenceRef(edge.EdgeID, ref); err != nil {
			return err
		}
	}
	return ValidateProvenance(edge.EdgeID, edge.Provenance)
}

// ValidateBundle schema-checks a compiled QueryEvidenceBundle before it
// is returned to a caller.
func ValidateBundle(bundle model.QueryEvidenceBundle) error {
	if bundle.QueryID == "" {
		return newValidationError("", "query_id", "must not be empty")
	}
	for _, hit := range bundle.Hits {
		if hit.StateID == "" {
			return newValidationError(bundle.QueryID, "hits[].state_id", "must not be empty")
		}
		if hit.TSStartMs > hit.TSEndMs {
			return newValidationError(bundle.QueryID, "hits[].ts_start_ms", "must not be after ts_end_ms")
		}
		for _, ref := range hit.Evidence {
			if err := ValidateEvidenceRef(hit.StateID, ref); err != nil {
				return err
			}
		}
	}
	return nil
}
