package builder

import (
	"sort"

	"github.com/localtrace/statetape/pkg/model"
)

// assembleEvidence builds up to maxRefs EvidenceRef entries from a
// window's states, one per state, sorted by (ts_start_ms, media_id) and
// truncated to maxRefs.
func assembleEvidence(states []model.DerivedSSTState, maxRefs int) []model.EvidenceRef {
	refs := make([]model.EvidenceRef, 0, len(states))
	for _, state := range states {
		refs = append(refs, model.EvidenceRef{
			MediaID:    state.FrameID,
			TSStartMs:  state.TSMs,
			TSEndMs:    state.TSMs,
			FrameIndex: state.FrameIndex,
			BBoxXYWH:   [4]int{0, 0, state.Width, state.Height},
			SHA256:     state.ImageSHA256,
		})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].TSStartMs != refs[j].TSStartMs {
			return refs[i].TSStartMs < refs[j].TSStartMs
		}
		return refs[i].MediaID < refs[j].MediaID
	})

	if maxRefs > 0 && len(refs) > maxRefs {
		refs = refs[:maxRefs]
	}
	return refs
}
