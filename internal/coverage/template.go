package coverage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AllTranslatedNotice is the text template when nothing is missing.
const AllTranslatedNotice = "// All items are translated!"

// TemplateJSON renders the missing names as a tab-indented JSON object with
// empty values, in item-list order.
func TemplateJSON(missing []string) []byte {
	if len(missing) == 0 {
		return []byte("{}")
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i, name := range missing {
		b.WriteString("\t")
		b.WriteString(quote(name))
		b.WriteString(`: ""`)
		if i < len(missing)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return []byte(b.String())
}

// TemplateText renders the groups as dictionary fragments, each preceded by
// a comment saying where it belongs.
func TemplateText(groups []MissingGroup) string {
	if len(groups) == 0 {
		return AllTranslatedNotice
	}
	var b strings.Builder
	for _, g := range groups {
		if g.AtStart {
			fmt.Fprintf(&b, "// === insert at the top of the file (#%d~) ===\n", g.StartIndex)
		} else {
			fmt.Fprintf(&b, "// === insert after %s (#%d~) ===\n", quote(g.InsertAfter), g.StartIndex)
		}
		lines := make([]string, len(g.Items))
		for i, name := range g.Items {
			lines[i] = "\t" + quote(name) + `: ""`
		}
		b.WriteString(strings.Join(lines, ",\n"))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// quote renders s as a JSON string without HTML escaping.
func quote(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
