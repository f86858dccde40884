package extractor

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog holds the domain tables the strategies match against.
type Catalog struct {
	Sentinel          string              `yaml:"sentinel" json:"sentinel"`
	AnchorPatterns    []string            `yaml:"anchor_patterns" json:"anchor_patterns"`
	ArrayKeywords     []string            `yaml:"array_keywords" json:"array_keywords"`
	DefinitionMarkers []string            `yaml:"definition_markers" json:"definition_markers"`
	PropertyDenylist  []string            `yaml:"property_denylist" json:"property_denylist"`
	ReservedPrefixes  []string            `yaml:"reserved_prefixes" json:"reserved_prefixes"`
	Palettes          map[string][]string `yaml:"palettes" json:"palettes"`
	DefaultPalette    string              `yaml:"default_palette" json:"default_palette"`
	Generators        []Generator         `yaml:"generators" json:"generators"`
	SpecialCases      []SpecialCase       `yaml:"special_cases" json:"special_cases"`
}

// Generator maps a generated-name shape to the palette it expands over.
type Generator struct {
	Prefix  string `yaml:"prefix" json:"prefix"`
	Suffix  string `yaml:"suffix" json:"suffix"`
	Palette string `yaml:"palette" json:"palette"`
}

// SpecialCase inserts Variants right after Name.
type SpecialCase struct {
	Name     string   `yaml:"name" json:"name"`
	Variants []string `yaml:"variants" json:"variants"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic("embedded catalog: " + err.Error())
	}
	return c
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that patterns compile and palette references resolve.
func (c *Catalog) Validate() error {
	if c.Sentinel == "" {
		return fmt.Errorf("catalog: sentinel is required")
	}
	if _, err := c.anchorRegexps(); err != nil {
		return err
	}
	if len(c.DefinitionMarkers) == 0 {
		return fmt.Errorf("catalog: at least one definition marker is required")
	}
	if c.DefaultPalette != "" {
		if _, ok := c.Palettes[c.DefaultPalette]; !ok {
			return fmt.Errorf("catalog: default palette %q is not defined", c.DefaultPalette)
		}
	}
	for _, g := range c.Generators {
		if _, ok := c.Palettes[g.Palette]; !ok {
			return fmt.Errorf("catalog: generator %q+%q uses unknown palette %q", g.Prefix, g.Suffix, g.Palette)
		}
	}
	return nil
}

// Merge overlays the non-empty sections of o onto a copy of c.
func (c *Catalog) Merge(o *Catalog) *Catalog {
	out := *c
	if o == nil {
		return &out
	}
	if o.Sentinel != "" {
		out.Sentinel = o.Sentinel
	}
	if len(o.AnchorPatterns) > 0 {
		out.AnchorPatterns = o.AnchorPatterns
	}
	if len(o.ArrayKeywords) > 0 {
		out.ArrayKeywords = o.ArrayKeywords
	}
	if len(o.DefinitionMarkers) > 0 {
		out.DefinitionMarkers = o.DefinitionMarkers
	}
	if len(o.PropertyDenylist) > 0 {
		out.PropertyDenylist = o.PropertyDenylist
	}
	if len(o.ReservedPrefixes) > 0 {
		out.ReservedPrefixes = o.ReservedPrefixes
	}
	if len(o.Palettes) > 0 {
		merged := make(map[string][]string, len(c.Palettes)+len(o.Palettes))
		for k, v := range c.Palettes {
			merged[k] = v
		}
		for k, v := range o.Palettes {
			merged[k] = v
		}
		out.Palettes = merged
	}
	if o.DefaultPalette != "" {
		out.DefaultPalette = o.DefaultPalette
	}
	if len(o.Generators) > 0 {
		out.Generators = o.Generators
	}
	if len(o.SpecialCases) > 0 {
		out.SpecialCases = o.SpecialCases
	}
	return &out
}

// PaletteFor picks the palette for a generated name with the given literals.
func (c *Catalog) PaletteFor(prefix, suffix string) []string {
	for _, g := range c.Generators {
		if g.Prefix == prefix && g.Suffix == suffix {
			return c.Palettes[g.Palette]
		}
	}
	return c.Palettes[c.DefaultPalette]
}

// SpecialVariants returns the variants implied by name, if any.
func (c *Catalog) SpecialVariants(name string) []string {
	for _, sc := range c.SpecialCases {
		if sc.Name == name {
			return sc.Variants
		}
	}
	return nil
}

func (c *Catalog) anchorRegexps() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(c.AnchorPatterns))
	for _, p := range c.AnchorPatterns {
		expr := strings.ReplaceAll(p, "{sentinel}", regexp.QuoteMeta(c.Sentinel))
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("catalog: anchor pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (c *Catalog) markerRegexp() *regexp.Regexp {
	quoted := make([]string, len(c.DefinitionMarkers))
	for i, m := range c.DefinitionMarkers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\s*:`)
}
