package evidencecompiler

import (
	"sort"
	"strings"

	"github.com/localtrace/statetape/pkg/contracts"
	"github.com/localtrace/statetape/pkg/model"
)

// StateTextLookup resolves the derived text backing a state, used to
// build snippets. Implementations read from the metadata store; they
// never write.
type StateTextLookup interface {
	// DerivedText returns a stored derived-text record (OCR or VLM)
	// for stateID's source frame, if one exists.
	DerivedText(stateID string) (model.DerivedTextRecord, bool)

	// State returns the structured state for stateID, used to fall
	// back to its tokens' joined text when no derived record exists.
	State(stateID string) (model.DerivedSSTState, bool)
}

// Config bounds how much evidence and text a compiled bundle may
// carry.
type Config struct {
	MaxHits             int
	MaxEvidencePerHit   int
	MaxSnippetsPerHit   int
	MaxSnippetChars     int
}

// DefaultConfig returns the compiler's default bounds.
func DefaultConfig() Config {
	return Config{
		MaxHits:           20,
		MaxEvidencePerHit: 8,
		MaxSnippetsPerHit: 3,
		MaxSnippetChars:   280,
	}
}

// Compile assembles a schema-valid QueryEvidenceBundle from retrieval
// hits, truncating evidence and snippets per cfg and applying
// redaction when policy.RedactText is set.
func Compile(queryID string, hits []model.RetrievalHit, policy model.StatePolicyDecision, lookup StateTextLookup, cfg Config) (model.QueryEvidenceBundle, error) {
	limited := hits
	if cfg.MaxHits > 0 && len(limited) > cfg.MaxHits {
		limited = limited[:cfg.MaxHits]
	}

	bundleHits := make([]model.BundleHit, 0, len(limited))
	for _, hit := range limited {
		evidence := append([]model.EvidenceRef(nil), hit.Evidence...)
		sort.SliceStable(evidence, func(i, j int) bool {
			if evidence[i].TSStartMs != evidence[j].TSStartMs {
				return evidence[i].TSStartMs < evidence[j].TSStartMs
			}
			return evidence[i].MediaID < evidence[j].MediaID
		})
		if cfg.MaxEvidencePerHit > 0 && len(evidence) > cfg.MaxEvidencePerHit {
			evidence = evidence[:cfg.MaxEvidencePerHit]
		}

		var snippets []model.Snippet
		if policy.CanExportText {
			snippets = buildSnippets(hit, evidence, policy, lookup, cfg)
		}

		bundleHits = append(bundleHits, model.BundleHit{
			StateID:               hit.StateID,
			Score:                 hit.Score,
			TSStartMs:             hit.TSStartMs,
			TSEndMs:               hit.TSEndMs,
			Evidence:              evidence,
			ExtractedTextSnippets: snippets,
		})
	}

	bundle := model.QueryEvidenceBundle{
		QueryID: queryID,
		Hits:    bundleHits,
		Policy: model.BundlePolicy{
			CanShowRawMedia: policy.CanShowRawMedia,
			CanExportText:   policy.CanExportText,
		},
	}

	if err := contracts.ValidateBundle(bundle); err != nil {
		return model.QueryEvidenceBundle{}, err
	}
	return bundle, nil
}

func buildSnippets(hit model.RetrievalHit, evidence []model.EvidenceRef, policy model.StatePolicyDecision, lookup StateTextLookup, cfg Config) []model.Snippet {
	maxSnippets := cfg.MaxSnippetsPerHit
	if maxSnippets <= 0 {
		maxSnippets = 3
	}

	parentStateIDs := hit.Provenance.InputArtifactIDs

	var snippets []model.Snippet
	for _, ref := range evidence {
		if len(snippets) >= maxSnippets {
			break
		}
		text, ok := resolveText(ref.MediaID, parentStateIDs, lookup)
		if !ok || text == "" {
			continue
		}
		if policy.RedactText {
			text = Redact(text)
		}
		text = truncateAtWordBoundary(text, cfg.MaxSnippetChars)

		snippets = append(snippets, model.Snippet{
			MediaID: ref.MediaID,
			TSMs:    ref.TSStartMs,
			Text:    text,
			Span:    model.TextSpan{Start: 0, End: len(text)},
		})
	}
	return snippets
}

// resolveText finds the text backing mediaID by checking the parent
// states named in the span's provenance: a stored derived-text record
// first, falling back to the state's joined token text.
func resolveText(mediaID string, parentStateIDs []string, lookup StateTextLookup) (string, bool) {
	for _, stateID := range parentStateIDs {
		if rec, ok := lookup.DerivedText(stateID); ok {
			if rec.Text != "" {
				return rec.Text, true
			}
		}
	}
	for _, stateID := range parentStateIDs {
		state, ok := lookup.State(stateID)
		if !ok || state.FrameID != mediaID {
			continue
		}
		return joinTokenText(state), true
	}
	// Parent state ids don't necessarily match the evidence's media id
	// one-to-one (a span may merge several states' frames); fall back
	// to any parent state's tokens if nothing else matched.
	for _, stateID := range parentStateIDs {
		if state, ok := lookup.State(stateID); ok {
			if text := joinTokenText(state); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

func joinTokenText(state model.DerivedSSTState) string {
	parts := make([]string, 0, len(state.Tokens))
	for _, tok := range state.Tokens {
		norm := strings.TrimSpace(tok.Text)
		if norm == "" {
			continue
		}
		parts = append(parts, norm)
	}
	return strings.Join(parts, " ")
}

func truncateAtWordBoundary(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	cut := s[:maxChars]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
