package extractor

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var blockTextureRe = regexp.MustCompile(
	`"([^"]+)":\{displayName:\{translationKey:"[^"]+"\},ttb:[0-9]+,textureInfo:(\[[^\]]*\]|"[^"]*"|[^,}]*)(?:,texturePerSide:(\[[^\]]+\]))?`)

// BlockTexture is the texture assignment of one block definition.
type BlockTexture struct {
	Name string `json:"name"`
	// Textures holds the texture names, or numeric indices rendered as text.
	Textures []string `json:"textures,omitempty"`
	// Ref is set when the definition points at a shared variable.
	Ref        string `json:"ref,omitempty"`
	PerSide    []int  `json:"per_side,omitempty"`
	HalfHeight bool   `json:"half_height"`
}

// Faces resolves the texture shown on the top, left and right faces.
func (b BlockTexture) Faces() (top, left, right string) {
	if len(b.Textures) == 0 {
		return "", "", ""
	}
	pick := func(i int) string {
		if i >= 0 && i < len(b.Textures) && b.Textures[i] != "" {
			return b.Textures[i]
		}
		return b.Textures[0]
	}
	if len(b.PerSide) >= 3 {
		return pick(b.PerSide[2]), pick(b.PerSide[1]), pick(b.PerSide[0])
	}
	return pick(0), pick(1), pick(2)
}

// IsHalfHeight reports blocks rendered at half height.
func IsHalfHeight(name string) bool {
	if strings.HasSuffix(name, " Slab") {
		return true
	}
	return strings.HasPrefix(name, "Fallen ") && strings.HasSuffix(name, " Leaves")
}

// ExtractBlockTextures returns the texture assignment of every inline block
// definition, keyed by block name. The first definition of a name wins.
func ExtractBlockTextures(text string) map[string]BlockTexture {
	out := make(map[string]BlockTexture)
	for _, m := range blockTextureRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if _, dup := out[name]; dup {
			continue
		}
		bt := BlockTexture{Name: name, HalfHeight: IsHalfHeight(name)}
		raw := strings.TrimSpace(m[2])
		switch {
		case strings.HasPrefix(raw, "["):
			bt.Textures = parseTextureList(raw)
		case strings.HasPrefix(raw, `"`):
			bt.Textures = []string{strings.Trim(raw, `"`)}
		case raw != "":
			bt.Ref = raw
		}
		if m[3] != "" {
			_ = json.Unmarshal([]byte(m[3]), &bt.PerSide)
		}
		out[name] = bt
	}
	return out
}

func parseTextureList(raw string) []string {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		if err := json.Unmarshal([]byte(normalizeQuotes(raw)), &items); err != nil {
			return nil
		}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			out = append(out, "")
		}
	}
	return out
}
