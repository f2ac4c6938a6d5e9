package builder

import (
	"sort"

	"github.com/localtrace/statetape/pkg/model"
)

// windowStates stable-sorts states by ts_ms ascending, then groups them
// into non-overlapping windows per cfg.WindowingMode. Every returned
// window holds at least one state.
func windowStates(states []model.DerivedSSTState, cfg Config) [][]model.DerivedSSTState {
	sorted := make([]model.DerivedSSTState, len(states))
	copy(sorted, states)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TSMs < sorted[j].TSMs
	})

	if len(sorted) == 0 {
		return nil
	}

	var windows [][]model.DerivedSSTState
	current := []model.DerivedSSTState{sorted[0]}
	windowStartMs := sorted[0].TSMs
	windowApp := leadingApp(sorted[0])

	for _, state := range sorted[1:] {
		elapsed := state.TSMs - windowStartMs
		appChanged := cfg.WindowingMode == WindowingHeuristicAppWindowChange && leadingApp(state) != windowApp

		if elapsed >= cfg.WindowMs || appChanged {
			windows = append(windows, current)
			current = []model.DerivedSSTState{state}
			windowStartMs = state.TSMs
			windowApp = leadingApp(state)
			continue
		}
		current = append(current, state)
	}
	windows = append(windows, current)

	return windows
}

func leadingApp(state model.DerivedSSTState) string {
	if len(state.VisibleApps) == 0 {
		return ""
	}
	return state.VisibleApps[0]
}
