package extractor

import (
	"regexp"
	"sort"

	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

const identExpr = `[a-zA-Z_$][a-zA-Z0-9_$]*`

var (
	// short wrapper call: x("Name", {...
	defWrapperRe = regexp.MustCompile(`[a-zA-Z0-9_$]{1,3}\(\s*"([^"]+)"\s*,`)
	// object member opening a block: "Name": {  or  Name: {
	defObjectKeyRe = regexp.MustCompile(`(?:"([^"]+)"|([a-zA-Z0-9_$]+))\s*:\s*\{`)
	// computed key or wrapper argument: [pre + e + "suffix"]: {  or  x(e + "suffix",
	defKeyGenRe = regexp.MustCompile(`(?:\[|[a-zA-Z0-9_$]{1,3}\()\s*(?:"([^"]*)"\s*\+\s*)?` + identExpr + `\s*\+\s*"([^"]*)"\s*(?:\]\s*[:=]\s*\{|,)`)
	// arrow closure: e => "pre" + e + "suffix"  or  e => `pre${e}suffix`
	defArrowGenRe = regexp.MustCompile(`=>\s*(?:(?:"([^"]*)"\s*\+\s*)?` + identExpr + `\s*\+\s*"([^"]*)"|` +
		"`([^`$]*)\\$\\{\\s*" + identExpr + "\\s*\\}([^`$]*)`)")
)

// DefinitionLimits bounds the definition-block scan.
type DefinitionLimits struct {
	Lookback int `yaml:"lookback" json:"lookback"`
}

func DefaultDefinitionLimits() DefinitionLimits {
	return DefinitionLimits{Lookback: 1500}
}

// DefinitionStrategy attributes every definition-only property marker to the
// nearest preceding block name, expanding generated names over palettes.
type DefinitionStrategy struct {
	catalog *Catalog
	marker  *regexp.Regexp
	limits  DefinitionLimits
}

func NewDefinitionStrategy(cat *Catalog, lim DefinitionLimits) *DefinitionStrategy {
	return &DefinitionStrategy{catalog: cat, marker: cat.markerRegexp(), limits: lim}
}

func (s *DefinitionStrategy) Name() string { return StrategyDefinitions }

// candidate is a possible owner of a marker found in its lookback window.
type candidate struct {
	end       int
	name      string
	generated bool
	prefix    string
	suffix    string
}

func (s *DefinitionStrategy) Extract(text string) plugin.Result {
	filter := NewNameFilter(s.catalog)
	expanded := make(map[int]struct{})
	var names []string

	accept := func(name string) {
		if !filter.Accept(name) {
			return
		}
		names = append(names, name)
		for _, v := range s.catalog.SpecialVariants(name) {
			if filter.Accept(v) {
				names = append(names, v)
			}
		}
	}

	for _, loc := range s.marker.FindAllStringIndex(text, -1) {
		from := max(0, loc[0]-s.limits.Lookback)
		owner, ok := s.owner(text[from:loc[0]], filter)
		if !ok {
			continue
		}
		if !owner.generated {
			accept(owner.name)
			continue
		}
		abs := from + owner.end
		if _, done := expanded[abs]; done {
			continue
		}
		expanded[abs] = struct{}{}
		for _, q := range s.catalog.PaletteFor(owner.prefix, owner.suffix) {
			accept(owner.prefix + q + owner.suffix)
		}
	}
	return plugin.Found(StrategyDefinitions, names)
}

// owner picks the closest candidate that is not a schema property.
func (s *DefinitionStrategy) owner(window string, filter *NameFilter) (candidate, bool) {
	var cands []candidate

	for _, m := range defWrapperRe.FindAllStringSubmatchIndex(window, -1) {
		cands = append(cands, candidate{end: m[1], name: window[m[2]:m[3]]})
	}
	for _, m := range defObjectKeyRe.FindAllStringSubmatchIndex(window, -1) {
		name := submatch(window, m, 1)
		if name == "" {
			name = submatch(window, m, 2)
		}
		cands = append(cands, candidate{end: m[1], name: name})
	}
	for _, m := range defKeyGenRe.FindAllStringSubmatchIndex(window, -1) {
		cands = append(cands, generatedCandidate(m[1], submatch(window, m, 1), submatch(window, m, 2)))
	}
	for _, m := range defArrowGenRe.FindAllStringSubmatchIndex(window, -1) {
		if m[6] >= 0 {
			cands = append(cands, generatedCandidate(m[1], submatch(window, m, 3), submatch(window, m, 4)))
			continue
		}
		cands = append(cands, generatedCandidate(m[1], submatch(window, m, 1), submatch(window, m, 2)))
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].end > cands[j].end })
	for _, c := range cands {
		if c.generated {
			if c.prefix == "" && c.suffix == "" {
				continue
			}
			return c, true
		}
		if filter.IsProperty(c.name) {
			continue
		}
		return c, true
	}
	return candidate{}, false
}

func generatedCandidate(end int, prefix, suffix string) candidate {
	return candidate{end: end, generated: true, prefix: prefix, suffix: suffix}
}

// submatch returns group n of a FindStringSubmatchIndex result, or "".
func submatch(s string, m []int, n int) string {
	if 2*n+1 >= len(m) || m[2*n] < 0 {
		return ""
	}
	return s[m[2*n]:m[2*n+1]]
}
