package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoru1741/Bloxd-Tools/internal/extractor"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
	"github.com/tomoru1741/Bloxd-Tools/internal/session"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestParse_OverlaysDefaults(t *testing.T) {
	doc := `
pipeline:
  chunks:
    - chunk_id: "7"
      strategies: [definitions]
  policy: longest
  thresholds:
    definitions: 50
fetcher:
  transport: browser
  timeout: 45s
session:
  load_mode: sequential
limits:
  definitions:
    lookback: 800
catalog:
  special_cases:
    - name: Bucket
      variants: [Lava Bucket]
server:
  listen: "127.0.0.1:9000"
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []pipeline.ChunkPlan{{ChunkID: "7", Strategies: []string{extractor.StrategyDefinitions}}}, cfg.Pipeline.Chunks)
	assert.Equal(t, pipeline.PolicyLongest, cfg.Pipeline.Policy)
	assert.Equal(t, 50, cfg.Pipeline.Threshold(extractor.StrategyDefinitions))
	assert.Equal(t, 100, cfg.Pipeline.Threshold(extractor.StrategyAnchor), "unlisted thresholds keep their default")
	assert.Equal(t, pipeline.DefaultManifestURL, cfg.Pipeline.ManifestURL)
	assert.Equal(t, TransportBrowser, cfg.Fetcher.Transport)
	assert.Equal(t, 45*time.Second, cfg.Fetcher.Timeout)
	assert.NotEmpty(t, cfg.Fetcher.Relays)
	assert.Equal(t, session.LoadSequential, cfg.Session.LoadMode)
	assert.Equal(t, 800, cfg.Limits.Definitions.Lookback)
	assert.Equal(t, extractor.DefaultSequentialLimits(), cfg.Limits.Sequential)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)

	cat, err := cfg.BuildCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"Lava Bucket"}, cat.SpecialVariants("Bucket"))
	assert.Equal(t, extractor.DefaultCatalog().Sentinel, cat.Sentinel)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"transport", func(c *Config) { c.Fetcher.Transport = "carrier-pigeon" }},
		{"empty relays", func(c *Config) { c.Fetcher.Relays = nil }},
		{"relay template", func(c *Config) { c.Fetcher.Relays[0].Template = "https://relay.example/" }},
		{"dictionary source", func(c *Config) { c.Dictionary.URL = "" }},
		{"load mode", func(c *Config) { c.Session.LoadMode = "parallel" }},
		{"string rate", func(c *Config) { c.Limits.StringArray.MinStringRate = 1.5 }},
		{"lookback", func(c *Config) { c.Limits.Definitions.Lookback = 0 }},
		{"listen", func(c *Config) { c.Server.Listen = "" }},
		{"pipeline policy", func(c *Config) { c.Pipeline.Policy = "best" }},
		{"bad catalog", func(c *Config) { c.Catalog = &extractor.Catalog{AnchorPatterns: []string{"("}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bloxdcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  policy: nope\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "unknown policy")
}

func TestWatch_ReloadsValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bloxdcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	var (
		mu   sync.Mutex
		seen []*Config
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := Watch(ctx, path, nil, func(c *Config) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c)
	})
	require.NoError(t, err)
	defer w.Close()

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	// invalid edits are ignored
	require.NoError(t, os.WriteFile(path, []byte("session:\n  load_mode: bogus\n"), 0o644))
	time.Sleep(2 * defaultDebounce)

	mu.Lock()
	assert.Empty(t, seen)
	mu.Unlock()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "debug", seen[len(seen)-1].Log.Level)
	mu.Unlock()
	require.NoError(t, w.Close())
}
