package extractor

import (
	"strings"
	"unicode/utf8"
)

// NameFilter decides whether a candidate from a definition block is a real,
// not-yet-seen item name.
type NameFilter struct {
	denylist map[string]struct{}
	prefixes []string
	seen     map[string]struct{}
}

func NewNameFilter(cat *Catalog) *NameFilter {
	f := &NameFilter{
		denylist: make(map[string]struct{}, len(cat.PropertyDenylist)),
		seen:     make(map[string]struct{}),
	}
	for _, d := range cat.PropertyDenylist {
		f.denylist[d] = struct{}{}
	}
	for _, p := range cat.ReservedPrefixes {
		f.prefixes = append(f.prefixes, strings.ToLower(p))
	}
	return f
}

// IsProperty reports whether name is a schema field rather than an item.
func (f *NameFilter) IsProperty(name string) bool {
	_, ok := f.denylist[name]
	return ok
}

// Valid applies the stateless checks.
func (f *NameFilter) Valid(name string) bool {
	if utf8.RuneCountInString(name) < 2 {
		return false
	}
	if strings.ContainsAny(name, "|_") {
		return false
	}
	if f.IsProperty(name) {
		return false
	}
	lower := strings.ToLower(name)
	for _, p := range f.prefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

// Accept records name and reports true when it is valid and new.
func (f *NameFilter) Accept(name string) bool {
	if !f.Valid(name) {
		return false
	}
	if _, dup := f.seen[name]; dup {
		return false
	}
	f.seen[name] = struct{}{}
	return true
}

// Seen reports whether name was accepted before.
func (f *NameFilter) Seen(name string) bool {
	_, ok := f.seen[name]
	return ok
}
