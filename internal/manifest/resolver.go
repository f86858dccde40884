// Package manifest locates bundle chunks inside a webpack asset manifest.
package manifest

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/zap"
)

// Manifest is the subset of asset-manifest.json that is interpreted.
type Manifest struct {
	Files map[string]string `json:"files"`
}

// JSONFetcher fetches a URL and decodes its JSON body into v.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, target string, v any) (*plugin.Response, error)
}

// Resolver turns chunk ids into absolute chunk URLs.
type Resolver struct {
	fetcher JSONFetcher
	logger  *zap.Logger
}

// NewResolver creates a resolver that fetches manifests through f.
func NewResolver(f JSONFetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: f, logger: logger}
}

// Fetch downloads and decodes the manifest.
func (r *Resolver) Fetch(ctx context.Context, manifestURL string) (*Manifest, error) {
	var m Manifest
	if _, err := r.fetcher.FetchJSON(ctx, manifestURL, &m); err != nil {
		return nil, err
	}
	if m.Files == nil {
		return nil, fmt.Errorf("manifest %s has no files map", manifestURL)
	}
	return &m, nil
}

// ResolveChunkURLs fetches the manifest and resolves each chunk id in order.
// Ids without a matching key are logged and skipped.
func (r *Resolver) ResolveChunkURLs(ctx context.Context, manifestURL string, chunkIDs []string) ([]plugin.ChunkReference, error) {
	m, err := r.Fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest URL: %w", err)
	}

	refs := make([]plugin.ChunkReference, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		ref, err := Resolve(m, base, id)
		if err != nil {
			r.logger.Warn("Chunk not in manifest", zap.String("chunk", id), zap.Error(err))
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Resolve finds the key for chunkID and joins its path onto the origin of base.
// When several keys match, the lexically smallest one wins.
func Resolve(m *Manifest, base *url.URL, chunkID string) (plugin.ChunkReference, error) {
	key, ok := FindChunkKey(m.Files, chunkID)
	if !ok {
		return plugin.ChunkReference{}, fmt.Errorf("%w: %s", plugin.ErrManifestChunkNotFound, chunkID)
	}

	ref, err := url.Parse(m.Files[key])
	if err != nil {
		return plugin.ChunkReference{}, fmt.Errorf("chunk %s path %q: %w", chunkID, m.Files[key], err)
	}

	origin := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}
	return plugin.ChunkReference{
		ChunkID: chunkID,
		Key:     key,
		URL:     origin.ResolveReference(ref).String(),
	}, nil
}

// FindChunkKey returns the manifest key shaped like static/js/<x>.<id>.<hash>.chunk.js.
func FindChunkKey(files map[string]string, chunkID string) (string, bool) {
	pattern := chunkKeyPattern(chunkID)

	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if pattern.MatchString(k) {
			return k, true
		}
	}
	return "", false
}

func chunkKeyPattern(chunkID string) *regexp.Regexp {
	return regexp.MustCompile(`^static/js/.*\.` + regexp.QuoteMeta(chunkID) + `\.[a-f0-9]+\.chunk\.js$`)
}
