package main

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/localtrace/statetape/pkg/model"
	"github.com/localtrace/statetape/pkg/store/metadata"
)

// sstStatePrefix mirrors pkg/idle's unexported key grammar for derived
// structured-screen-state records ("derived.sst.state/{run_id}/{state_id}")
// so this lookup can enumerate them without exporting that detail from
// pkg/idle.
const sstStatePrefix = "derived.sst.state/"

// encodeComponent mirrors pkg/idle's id-component encoding (path
// separators replaced with underscores) so derived-text keys built here
// match the ones the idle processor actually wrote.
func encodeComponent(s string) string {
	return strings.ReplaceAll(s, "/", "_")
}

// metadataTextLookup implements evidencecompiler.StateTextLookup by
// scanning the metadata store's structured-state key space once per
// process and caching the result. At the scale one local query runs
// against (one operator's own capture history) a linear scan over these
// two prefixes is cheap; nothing in this tool runs it per-query-term or
// over a remote store.
type metadataTextLookup struct {
	store metadata.Store

	mu      sync.Mutex
	scanned bool
	states  map[string]sstStateEntry
}

type sstStateEntry struct {
	runID string
	state model.DerivedSSTState
}

func newMetadataTextLookup(store metadata.Store) *metadataTextLookup {
	return &metadataTextLookup{store: store, states: make(map[string]sstStateEntry)}
}

func (l *metadataTextLookup) ensureScanned() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scanned {
		return
	}
	l.scanned = true

	keys, err := l.store.Keys(sstStatePrefix)
	if err != nil {
		return
	}
	for _, key := range keys {
		rest := strings.TrimPrefix(key, sstStatePrefix)
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			continue
		}
		runID, stateID := parts[0], parts[1]

		raw, err := l.store.Get(key)
		if err != nil {
			continue
		}
		var state model.DerivedSSTState
		if err := json.Unmarshal(raw, &state); err != nil {
			continue
		}
		l.states[stateID] = sstStateEntry{runID: runID, state: state}
	}
}

// State implements evidencecompiler.StateTextLookup.
func (l *metadataTextLookup) State(stateID string) (model.DerivedSSTState, bool) {
	l.ensureScanned()
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.states[stateID]
	return entry.state, ok
}

// DerivedText implements evidencecompiler.StateTextLookup: it resolves
// stateID to its source frame, then looks for an OCR or VLM derived-text
// record keyed against that frame within the same run.
func (l *metadataTextLookup) DerivedText(stateID string) (model.DerivedTextRecord, bool) {
	l.ensureScanned()

	l.mu.Lock()
	entry, ok := l.states[stateID]
	l.mu.Unlock()
	if !ok {
		return model.DerivedTextRecord{}, false
	}

	suffix := "/" + encodeComponent(entry.state.FrameID)
	for _, kind := range []string{model.DerivedTextKindOCR, model.DerivedTextKindVLM} {
		prefix := entry.runID + "/" + kind + "/"
		keys, err := l.store.Keys(prefix)
		if err != nil {
			continue
		}
		for _, key := range keys {
			if !strings.HasSuffix(key, suffix) {
				continue
			}
			raw, err := l.store.Get(key)
			if err != nil {
				continue
			}
			var rec model.DerivedTextRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				continue
			}
			return rec, true
		}
	}
	return model.DerivedTextRecord{}, false
}
