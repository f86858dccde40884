package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// SequentialLimits bounds a sequential-id scan.
type SequentialLimits struct {
	// MaxConsecutiveFailures stops the scan after this many misses in a row.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
	// MaxEntries stops the scan once more than this many names were collected.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
	// SoftCapEntries and SoftCapFailures together stop a long, noisy scan.
	SoftCapEntries  int `yaml:"soft_cap_entries" json:"soft_cap_entries"`
	SoftCapFailures int `yaml:"soft_cap_failures" json:"soft_cap_failures"`
	// MinEntries is the smallest scan result worth returning.
	MinEntries int `yaml:"min_entries" json:"min_entries"`
}

// DefaultSequentialLimits returns the limits tuned against live bundles.
func DefaultSequentialLimits() SequentialLimits {
	return SequentialLimits{
		MaxConsecutiveFailures: 10,
		MaxEntries:             2000,
		SoftCapEntries:         200,
		SoftCapFailures:        20,
		MinEntries:             100,
	}
}

var (
	// separator, optional quote, name, optional quote, ":" or "=", integer
	seqEntryRe = regexp.MustCompile(`^[,;{]\s*["']?([a-zA-Z0-9_\s]+)["']?\s*[:=]\s*(\d+)`)
	// same shape without the leading separator, tried only at the scan start
	seqFirstEntryRe = regexp.MustCompile(`^["']?([a-zA-Z0-9_\s]+)["']?\s*[:=]\s*(\d+)`)
)

// ScanResult is what a sequential scan collected.
type ScanResult struct {
	Names []string
	// End is the offset just past the last consumed entry.
	End int
}

// ScanSequential reads name/integer pairs starting at start and keeps the ones
// whose integer continues the sequence 0, 1, 2, ... Entries repeating the
// current integer are aliases and are not added. Names come back in id order.
// A nil Names means the scan did not reach lim.MinEntries.
func ScanSequential(text string, start int, lim SequentialLimits) ScanResult {
	var (
		names       []string
		seen        = make(map[string]struct{})
		lastID      = -1
		consecutive int
		total       int
		pos         = start
		end         = start
	)

	fail := func() {
		consecutive++
		total++
		pos++
	}

	for pos < len(text) {
		m := seqEntryRe.FindStringSubmatchIndex(text[pos:])
		if m == nil && pos == start {
			m = seqFirstEntryRe.FindStringSubmatchIndex(text[pos:])
		}
		if m == nil {
			fail()
		} else {
			name := strings.TrimSpace(text[pos+m[2] : pos+m[3]])
			id, err := strconv.Atoi(text[pos+m[4] : pos+m[5]])
			switch {
			case err != nil || name == "":
				fail()
			case id == lastID+1:
				lastID = id
				if _, dup := seen[name]; !dup {
					seen[name] = struct{}{}
					names = append(names, name)
				}
				consecutive = 0
				pos += m[1]
				end = pos
			case id == lastID && lastID >= 0:
				consecutive = 0
				pos += m[1]
				end = pos
			default:
				fail()
			}
		}

		if len(names) > lim.MaxEntries {
			break
		}
		if len(names) > lim.SoftCapEntries && total > lim.SoftCapFailures {
			break
		}
		if consecutive >= lim.MaxConsecutiveFailures {
			break
		}
	}

	if len(names) < lim.MinEntries {
		return ScanResult{End: end}
	}
	return ScanResult{Names: names, End: end}
}
