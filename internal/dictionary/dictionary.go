// Package dictionary loads the community translation dictionary.
package dictionary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/zap"
)

// DefaultURL is the raw wiki page holding the item-name dictionary.
const DefaultURL = "https://bloxdjapan.miraheze.org/wiki/MediaWiki:ItemName.json?action=raw"

// Map maps an item name to its translated label.
type Map map[string]string

// Has reports whether name has an entry, including an empty one.
func (m Map) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Keys returns the entry names sorted.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JSONFetcher fetches a URL and decodes its JSON body into v.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, target string, v any) (*plugin.Response, error)
}

// Loader fetches the dictionary through the relay list.
type Loader struct {
	fetch  JSONFetcher
	url    string
	logger *zap.Logger
}

// NewLoader creates a loader for dictURL. An empty dictURL means DefaultURL.
func NewLoader(f JSONFetcher, dictURL string, logger *zap.Logger) *Loader {
	if dictURL == "" {
		dictURL = DefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{fetch: f, url: dictURL, logger: logger}
}

// URL returns the dictionary location.
func (l *Loader) URL() string { return l.url }

// Load fetches and decodes the dictionary. Errors are tagged with
// plugin.StageDictionary.
func (l *Loader) Load(ctx context.Context) (Map, error) {
	var raw map[string]json.RawMessage
	resp, err := l.fetch.FetchJSON(ctx, l.url, &raw)
	if err != nil {
		return nil, &plugin.StageError{Stage: plugin.StageDictionary, Err: err}
	}
	if raw == nil {
		return nil, &plugin.StageError{Stage: plugin.StageDictionary, Err: fmt.Errorf("%s is not a JSON object", l.url)}
	}

	m := fromRaw(raw)
	l.logger.Info("Dictionary loaded",
		zap.String("url", l.url),
		zap.String("relay", resp.Relay),
		zap.Int("entries", len(m)))
	return m, nil
}

// Parse decodes a dictionary document.
func Parse(data []byte) (Map, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse dictionary: not a JSON object")
	}
	return fromRaw(raw), nil
}

// LoadFile reads a dictionary from disk.
func LoadFile(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return Parse(data)
}

// FileSource loads the dictionary from a local file instead of the wiki.
type FileSource string

// Load reads the file. Errors are tagged with plugin.StageDictionary.
func (f FileSource) Load(ctx context.Context) (Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := LoadFile(string(f))
	if err != nil {
		return nil, &plugin.StageError{Stage: plugin.StageDictionary, Err: err}
	}
	return m, nil
}

// fromRaw keeps every key. String values are used as-is, null becomes "",
// anything else keeps its JSON text.
func fromRaw(raw map[string]json.RawMessage) Map {
	m := make(Map, len(raw))
	for k, v := range raw {
		var s string
		switch {
		case bytes.Equal(bytes.TrimSpace(v), []byte("null")):
		case json.Unmarshal(v, &s) == nil:
		default:
			s = string(v)
		}
		m[k] = s
	}
	return m
}
