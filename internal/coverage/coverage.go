// Package coverage compares the mined item list with the translation dictionary.
package coverage

import (
	"math"
	"sort"

	"github.com/tomoru1741/Bloxd-Tools/internal/dictionary"
)

// Entry is one item of the report, or one orphan dictionary key.
type Entry struct {
	// Index is the zero-based position in the item list (or orphan list).
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Translation string `json:"translation,omitempty"`
	Translated  bool   `json:"translated"`
	Orphan      bool   `json:"orphan,omitempty"`
}

// Report is the comparison of an item list with a dictionary. It is derived
// data: rebuild it whenever either input changes.
type Report struct {
	Total          int      `json:"total"`
	Translated     int      `json:"translated"`
	Missing        int      `json:"missing"`
	DictionarySize int      `json:"dictionary_size"`
	Coverage       float64  `json:"coverage"`
	Entries        []Entry  `json:"entries"`
	MissingNames   []string `json:"missing_names"`
	Orphans        []string `json:"orphans"`
}

// Compare builds the report. Names are compared case-sensitively; an entry
// with an empty translation still counts as translated. Orphans are sorted.
func Compare(items []string, dict dictionary.Map) *Report {
	r := &Report{
		Total:          len(items),
		DictionarySize: len(dict),
		Entries:        make([]Entry, len(items)),
		MissingNames:   []string{},
		Orphans:        []string{},
	}

	inList := make(map[string]struct{}, len(items))
	for i, name := range items {
		inList[name] = struct{}{}
		tr, ok := dict[name]
		r.Entries[i] = Entry{Index: i, Name: name, Translation: tr, Translated: ok}
		if ok {
			r.Translated++
		} else {
			r.MissingNames = append(r.MissingNames, name)
		}
	}
	r.Missing = r.Total - r.Translated
	r.Coverage = Percent(r.Translated, r.Total)

	for k := range dict {
		if _, ok := inList[k]; !ok {
			r.Orphans = append(r.Orphans, k)
		}
	}
	sort.Strings(r.Orphans)
	return r
}

// Percent returns part/total as a percentage rounded to one decimal,
// or 0 when total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}

// OrphanEntries returns the orphans as entries carrying their translations.
func (r *Report) OrphanEntries(dict dictionary.Map) []Entry {
	out := make([]Entry, len(r.Orphans))
	for i, name := range r.Orphans {
		out[i] = Entry{Index: i, Name: name, Translation: dict[name], Translated: true, Orphan: true}
	}
	return out
}
