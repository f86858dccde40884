package coverage

import "github.com/tomoru1741/Bloxd-Tools/internal/dictionary"

// MissingGroup is a run of consecutive untranslated items.
type MissingGroup struct {
	// InsertAfter is the nearest translated item before the run; empty when
	// AtStart is set.
	InsertAfter string `json:"insert_after,omitempty"`
	AtStart     bool   `json:"at_start"`
	// StartIndex is the one-based position of the first item of the run.
	StartIndex int      `json:"start_index"`
	Items      []string `json:"items"`
}

// Groups walks items in order and collects the runs of missing items.
func Groups(items []string, dict dictionary.Map) []MissingGroup {
	groups := []MissingGroup{}
	var cur *MissingGroup

	for i, name := range items {
		if dict.Has(name) {
			if cur != nil {
				groups = append(groups, *cur)
				cur = nil
			}
			continue
		}
		if cur == nil {
			cur = &MissingGroup{StartIndex: i + 1}
			// the item right before a run is always translated
			if i == 0 {
				cur.AtStart = true
			} else {
				cur.InsertAfter = items[i-1]
			}
		}
		cur.Items = append(cur.Items, name)
	}
	if cur != nil {
		groups = append(groups, *cur)
	}
	return groups
}
