package extractor

import (
	"regexp"

	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// AnchorStrategy finds the sentinel's "= 0" entry and reads the id sequence
// that follows it.
type AnchorStrategy struct {
	patterns []*regexp.Regexp
	limits   SequentialLimits
}

// NewAnchorStrategy compiles the catalog's anchor patterns.
func NewAnchorStrategy(cat *Catalog, lim SequentialLimits) (*AnchorStrategy, error) {
	res, err := cat.anchorRegexps()
	if err != nil {
		return nil, err
	}
	return &AnchorStrategy{patterns: res, limits: lim}, nil
}

func (s *AnchorStrategy) Name() string { return StrategyAnchor }

// Extract tries every anchor occurrence in pattern order and returns the
// first scan that reaches the minimum size.
func (s *AnchorStrategy) Extract(text string) plugin.Result {
	for _, re := range s.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if r := ScanSequential(text, loc[0], s.limits); r.Names != nil {
				return plugin.Found(StrategyAnchor, r.Names)
			}
		}
	}
	return plugin.NoResult(StrategyAnchor)
}
