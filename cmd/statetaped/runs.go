package main

import (
	"strings"

	"github.com/localtrace/statetape/pkg/store/metadata"
)

// discoverRunIDs enumerates the distinct run ids present in store by
// scanning its two evidence key grammars ("{run_id}/segment/{n}" and
// "{run_id}/evidence.capture.frame/{n}"). Evidence is produced by a
// capture pipeline outside this tool and carries its own run_id, so a
// daemon sweep has to discover which runs exist rather than being told.
func discoverRunIDs(store metadata.Store) ([]string, error) {
	keys, err := store.Keys("")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var runIDs []string
	for _, key := range keys {
		runID, ok := runIDFromEvidenceKey(key)
		if !ok {
			continue
		}
		if _, dup := seen[runID]; dup {
			continue
		}
		seen[runID] = struct{}{}
		runIDs = append(runIDs, runID)
	}
	return runIDs, nil
}

// runIDFromEvidenceKey splits a key into its run id when it matches one
// of the two evidence key grammars; keys outside those grammars
// (derived.*, checkpoints, state records) are ignored.
func runIDFromEvidenceKey(key string) (string, bool) {
	runID, rest, found := strings.Cut(key, "/")
	if !found || runID == "" {
		return "", false
	}
	if strings.HasPrefix(rest, "segment/") || strings.HasPrefix(rest, "evidence.capture.frame/") {
		return runID, true
	}
	return "", false
}
