// Package extractor recovers the canonical item list from minified bundle text.
package extractor

import (
	"fmt"

	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// Built-in strategy names, in default cascade order.
const (
	StrategyAnchor      = "anchor"
	StrategyHeuristic   = "heuristic"
	StrategyStringArray = "string-array"
	StrategyDefinitions = "definitions"
)

// DefaultOrder is the cascade order tried against every chunk.
func DefaultOrder() []string {
	return []string{StrategyAnchor, StrategyHeuristic, StrategyStringArray, StrategyDefinitions}
}

// Limits groups the tunables of the built-in strategies.
type Limits struct {
	Sequential  SequentialLimits  `yaml:"sequential" json:"sequential"`
	StringArray StringArrayLimits `yaml:"string_array" json:"string_array"`
	Definitions DefinitionLimits  `yaml:"definitions" json:"definitions"`
}

func DefaultLimits() Limits {
	return Limits{
		Sequential:  DefaultSequentialLimits(),
		StringArray: DefaultStringArrayLimits(),
		Definitions: DefaultDefinitionLimits(),
	}
}

// Registry holds the available strategies by name.
type Registry struct {
	strategies map[string]plugin.Strategy
	order      []string
}

// NewRegistry creates a registry with all built-in strategies.
func NewRegistry(cat *Catalog, lim Limits) (*Registry, error) {
	if cat == nil {
		cat = DefaultCatalog()
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	anchor, err := NewAnchorStrategy(cat, lim.Sequential)
	if err != nil {
		return nil, err
	}

	r := &Registry{strategies: make(map[string]plugin.Strategy)}
	r.Register(anchor)
	r.Register(NewHeuristicStrategy(lim.Sequential))
	r.Register(NewStringArrayStrategy(cat, lim.StringArray))
	r.Register(NewDefinitionStrategy(cat, lim.Definitions))
	return r, nil
}

// Register adds or replaces a strategy.
func (r *Registry) Register(s plugin.Strategy) {
	if _, exists := r.strategies[s.Name()]; !exists {
		r.order = append(r.order, s.Name())
	}
	r.strategies[s.Name()] = s
}

// Get looks a strategy up by name.
func (r *Registry) Get(name string) (plugin.Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered strategy names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Run executes s over text. A panicking strategy yields a failed result
// instead of taking the caller down.
func Run(s plugin.Strategy, text string) (res plugin.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = plugin.Failed(s.Name(), fmt.Errorf("panic: %v", p))
		}
	}()
	return s.Extract(text)
}
