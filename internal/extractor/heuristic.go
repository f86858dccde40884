package extractor

import (
	"regexp"

	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// any object member assigned the integer 0
var zeroEntryRe = regexp.MustCompile(`[,;{]\s*["']?[a-zA-Z0-9_\s]+["']?\s*[:=]\s*0(?:[^0-9]|$)`)

// HeuristicStrategy scans from every "name: 0" entry and keeps the longest
// id sequence.
type HeuristicStrategy struct {
	limits SequentialLimits
}

func NewHeuristicStrategy(lim SequentialLimits) *HeuristicStrategy {
	return &HeuristicStrategy{limits: lim}
}

func (s *HeuristicStrategy) Name() string { return StrategyHeuristic }

func (s *HeuristicStrategy) Extract(text string) plugin.Result {
	var best []string
	skipUntil := 0
	for _, loc := range zeroEntryRe.FindAllStringIndex(text, -1) {
		// a zero inside an already-consumed sequence can only restart it
		if loc[0] < skipUntil {
			continue
		}
		r := ScanSequential(text, loc[0], s.limits)
		if r.Names == nil {
			continue
		}
		if len(r.Names) > len(best) {
			best = r.Names
		}
		skipUntil = r.End
	}
	return plugin.Found(StrategyHeuristic, best)
}
