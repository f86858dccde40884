package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// StringArrayLimits bounds the large-string-array scan.
type StringArrayLimits struct {
	KeywordWindow int     `yaml:"keyword_window" json:"keyword_window"`
	MaxLiteralLen int     `yaml:"max_literal_len" json:"max_literal_len"`
	MinElements   int     `yaml:"min_elements" json:"min_elements"`
	MinStringRate float64 `yaml:"min_string_rate" json:"min_string_rate"`
}

func DefaultStringArrayLimits() StringArrayLimits {
	return StringArrayLimits{
		KeywordWindow: 1200,
		MaxLiteralLen: 200000,
		MinElements:   50,
		MinStringRate: 0.8,
	}
}

// "[" followed by at least one complete string element and the start of another
var arrayStartRe = regexp.MustCompile(`\[\s*['"][^'"]+['"]\s*,\s*['"][^'"]+`)

// StringArrayStrategy looks for a long array literal of strings that mentions
// well-known item names near its start.
type StringArrayStrategy struct {
	keywords []string
	limits   StringArrayLimits
}

func NewStringArrayStrategy(cat *Catalog, lim StringArrayLimits) *StringArrayStrategy {
	return &StringArrayStrategy{keywords: cat.ArrayKeywords, limits: lim}
}

func (s *StringArrayStrategy) Name() string { return StrategyStringArray }

// Extract returns the accepted array with the most string elements, in
// literal order.
func (s *StringArrayStrategy) Extract(text string) plugin.Result {
	var best []string
	for _, loc := range arrayStartRe.FindAllStringIndex(text, -1) {
		start := loc[0]
		window := text[start:min(len(text), start+s.limits.KeywordWindow)]
		if !containsAny(window, s.keywords) {
			continue
		}
		literal, ok := scanArrayLiteral(text, start, s.limits.MaxLiteralLen)
		if !ok {
			continue
		}
		names, ok := s.parse(literal)
		if ok && len(names) > len(best) {
			best = names
		}
	}
	return plugin.Found(StrategyStringArray, best)
}

// parse decodes the literal and applies the size and purity thresholds.
func (s *StringArrayStrategy) parse(literal string) ([]string, bool) {
	var items []any
	if err := json.Unmarshal([]byte(literal), &items); err != nil {
		if err := json.Unmarshal([]byte(normalizeQuotes(literal)), &items); err != nil {
			return nil, false
		}
	}
	if len(items) < s.limits.MinElements {
		return nil, false
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		if str, ok := it.(string); ok {
			names = append(names, str)
		}
	}
	if float64(len(names)) < s.limits.MinStringRate*float64(len(items)) {
		return nil, false
	}
	return names, true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// scanArrayLiteral returns the bracket-balanced literal starting at text[start],
// skipping brackets inside quoted strings. It gives up after maxLen bytes.
func scanArrayLiteral(text string, start, maxLen int) (string, bool) {
	var (
		depth   int
		quote   byte
		escaped bool
	)
	for i := start; i < len(text); i++ {
		if maxLen > 0 && i-start > maxLen {
			return "", false
		}
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// normalizeQuotes rewrites single-quoted string literals as JSON strings.
func normalizeQuotes(literal string) string {
	var b strings.Builder
	b.Grow(len(literal))

	var quote byte
	for i := 0; i < len(literal); i++ {
		c := literal[i]
		switch {
		case quote == 0:
			if c == '\'' {
				quote = c
				b.WriteByte('"')
				continue
			}
			if c == '"' {
				quote = c
			}
			b.WriteByte(c)
		case c == '\\' && i+1 < len(literal):
			next := literal[i+1]
			i++
			if quote == '\'' && next == '\'' {
				b.WriteByte('\'')
				continue
			}
			b.WriteByte(c)
			b.WriteByte(next)
		case c == quote:
			quote = 0
			b.WriteByte('"')
		case c == '"' && quote == '\'':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
