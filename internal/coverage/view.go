package coverage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tomoru1741/Bloxd-Tools/internal/dictionary"
)

// Filter selects which entries a view shows.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterMissing    Filter = "missing"
	FilterTranslated Filter = "translated"
	FilterOrphan     Filter = "orphan"
)

// Sort orders a view.
type Sort string

const (
	SortOriginal Sort = "original"
	SortNameAsc  Sort = "name-asc"
	SortNameDesc Sort = "name-desc"
	// SortStatus lists missing entries first, each half in original order.
	SortStatus Sort = "status"
)

// ViewOptions describes one list view.
type ViewOptions struct {
	Filter Filter
	Query  string
	Sort   Sort
}

// ParseViewOptions validates raw filter and sort values. Empty values take
// the defaults.
func ParseViewOptions(filter, query, sortBy string) (ViewOptions, error) {
	opts := ViewOptions{Filter: FilterAll, Query: query, Sort: SortOriginal}
	if filter != "" {
		switch f := Filter(filter); f {
		case FilterAll, FilterMissing, FilterTranslated, FilterOrphan:
			opts.Filter = f
		default:
			return opts, fmt.Errorf("unknown filter %q", filter)
		}
	}
	if sortBy != "" {
		switch s := Sort(sortBy); s {
		case SortOriginal, SortNameAsc, SortNameDesc, SortStatus:
			opts.Sort = s
		default:
			return opts, fmt.Errorf("unknown sort %q", sortBy)
		}
	}
	return opts, nil
}

// View filters, searches and sorts the report entries. The orphan filter
// lists orphan dictionary keys instead of items. Search is case-insensitive
// over names and translations.
func View(r *Report, dict dictionary.Map, opts ViewOptions) []Entry {
	var src []Entry
	if opts.Filter == FilterOrphan {
		src = r.OrphanEntries(dict)
	} else {
		src = r.Entries
	}

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	out := make([]Entry, 0, len(src))
	for _, e := range src {
		switch opts.Filter {
		case FilterMissing:
			if e.Translated {
				continue
			}
		case FilterTranslated:
			if !e.Translated {
				continue
			}
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(e.Name), query) &&
			!strings.Contains(strings.ToLower(e.Translation), query) {
			continue
		}
		out = append(out, e)
	}

	switch opts.Sort {
	case SortNameAsc:
		sort.SliceStable(out, func(i, j int) bool { return nameLess(out[i].Name, out[j].Name) })
	case SortNameDesc:
		sort.SliceStable(out, func(i, j int) bool { return nameLess(out[j].Name, out[i].Name) })
	case SortStatus:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Translated != out[j].Translated {
				return !out[i].Translated
			}
			return out[i].Index < out[j].Index
		})
	}
	return out
}

func nameLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
