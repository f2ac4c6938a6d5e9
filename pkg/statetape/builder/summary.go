package builder

import (
	"sort"
	"strconv"
	"strings"

	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/model"
)

// summaryFeatures computes a window's SummaryFeatures: the first
// visible app of its first state, a truncated hash of that app name,
// and up to 5 top entity tokens ranked by descending frequency then
// lexicographic order.
func summaryFeatures(states []model.DerivedSSTState) model.SummaryFeatures {
	app := leadingApp(states[0])

	hash := hashing.HashBytes([]byte(app))
	windowTitleHash := hash
	if len(windowTitleHash) > 16 {
		windowTitleHash = windowTitleHash[:16]
	}

	counts := make(map[string]int)
	for _, state := range states {
		for _, tok := range state.Tokens {
			text := strings.ToLower(strings.TrimSpace(tok.Text))
			if text == "" || isNumeric(text) {
				continue
			}
			counts[text]++
		}
	}

	type entity struct {
		text  string
		count int
	}
	entities := make([]entity, 0, len(counts))
	for text, count := range counts {
		entities = append(entities, entity{text: text, count: count})
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].count != entities[j].count {
			return entities[i].count > entities[j].count
		}
		return entities[i].text < entities[j].text
	})

	topEntities := make([]string, 0, 5)
	for i := 0; i < len(entities) && i < 5; i++ {
		topEntities = append(topEntities, entities[i].text)
	}

	return model.SummaryFeatures{
		App:             app,
		WindowTitleHash: windowTitleHash,
		TopEntities:     topEntities,
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
