package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoru1741/Bloxd-Tools/internal/extractor"
	"github.com/tomoru1741/Bloxd-Tools/internal/fetcher"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

type stubResolver struct {
	urls map[string]string
	err  error
}

func (s *stubResolver) ResolveChunkURLs(_ context.Context, _ string, ids []string) ([]plugin.ChunkReference, error) {
	if s.err != nil {
		return nil, s.err
	}
	var refs []plugin.ChunkReference
	for _, id := range ids {
		if u, ok := s.urls[id]; ok {
			refs = append(refs, plugin.ChunkReference{ChunkID: id, URL: u})
		}
	}
	return refs, nil
}

type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func (s *stubFetcher) Fetch(_ context.Context, target string, _ fetcher.Expect) (*plugin.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[target]++
	body, ok := s.bodies[target]
	if !ok {
		return nil, &plugin.ProxyExhaustedError{Target: target}
	}
	return &plugin.Response{URL: target, Body: []byte(body), Relay: "stub"}, nil
}

type recorder struct {
	strategies []string
	runs       []string
}

func (r *recorder) ObserveStrategy(strategy, outcome string, _ int) {
	r.strategies = append(r.strategies, strategy+":"+outcome)
}

func (r *recorder) ObserveRun(outcome string, _ time.Duration, _ int) {
	r.runs = append(r.runs, outcome)
}

func enumChunk(n int) string {
	var b strings.Builder
	b.WriteString(`(self.webpackChunk=self.webpackChunk||[]).push([[3],{1:function(e,t){t.B={Unloaded:0`)
	for i := 1; i < n; i++ {
		fmt.Fprintf(&b, ",Item%d:%d", i, i)
	}
	b.WriteString("}}}]);")
	return b.String()
}

func arrayChunk(names ...string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	return `var L=[` + strings.Join(quoted, ",") + `];`
}

func fillers(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func newTestPipeline(t *testing.T, cfg *Config, res ChunkResolver, f TextFetcher, opts ...Option) *Pipeline {
	t.Helper()
	reg, err := extractor.NewRegistry(nil, extractor.DefaultLimits())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate(reg))
	return New(cfg, res, f, reg, opts...)
}

func TestExtract_ConcatenatesDedupesAndFilters(t *testing.T) {
	arr := append([]string{"Dirt", "Item1", "Secret|Debug"}, fillers("Extra", 60)...)
	f := &stubFetcher{bodies: map[string]string{
		"https://bloxd.io/c3.js":  enumChunk(150),
		"https://bloxd.io/c32.js": arrayChunk(arr...),
	}}
	res := &stubResolver{urls: map[string]string{"3": "https://bloxd.io/c3.js", "32": "https://bloxd.io/c32.js"}}

	run, err := newTestPipeline(t, DefaultConfig(), res, f).ExtractCanonicalItemList(context.Background())
	require.NoError(t, err)

	require.Len(t, run.Items, 150+1+60)
	assert.Equal(t, "Unloaded", run.Items[0])
	assert.Equal(t, "Dirt", run.Items[150])
	assert.Equal(t, "Extra0", run.Items[151])
	assert.NotContains(t, run.Items, "Secret|Debug")

	require.Len(t, run.Chunks, 2)
	assert.Equal(t, extractor.StrategyAnchor, run.Chunks[0].Strategy)
	assert.Equal(t, ChunkExtracted, run.Chunks[0].Status)
	assert.Equal(t, extractor.StrategyStringArray, run.Chunks[1].Strategy)
	assert.Equal(t, "stub", run.Chunks[1].Relay)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestExtract_ManifestFailure(t *testing.T) {
	res := &stubResolver{err: &plugin.ProxyExhaustedError{Target: DefaultManifestURL}}
	run, err := newTestPipeline(t, DefaultConfig(), res, &stubFetcher{}).ExtractCanonicalItemList(context.Background())

	require.Error(t, err)
	assert.Equal(t, plugin.StageManifest, plugin.StageOf(err))
	assert.True(t, errors.Is(err, plugin.ErrProxyExhausted))
	assert.Empty(t, run.Items)
}

func TestExtract_NoChunkFetched(t *testing.T) {
	res := &stubResolver{urls: map[string]string{"3": "https://bloxd.io/c3.js", "32": "https://bloxd.io/c32.js"}}
	run, err := newTestPipeline(t, DefaultConfig(), res, &stubFetcher{}).ExtractCanonicalItemList(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, plugin.ErrNotFound))
	assert.Equal(t, plugin.StageChunkFetch, plugin.StageOf(err))
	require.Len(t, run.Chunks, 2)
	assert.Equal(t, ChunkFetchFailed, run.Chunks[0].Status)
}

func TestExtract_NoPlannedChunkInManifest(t *testing.T) {
	f := &stubFetcher{}
	run, err := newTestPipeline(t, DefaultConfig(), &stubResolver{urls: map[string]string{}}, f).ExtractCanonicalItemList(context.Background())

	require.Error(t, err)
	assert.Equal(t, plugin.StageManifest, plugin.StageOf(err))
	assert.ErrorIs(t, err, plugin.ErrNotFound)
	assert.ErrorIs(t, err, plugin.ErrManifestChunkNotFound)
	assert.Contains(t, plugin.Diagnose(err), "no key for the planned chunk ids")
	assert.NotContains(t, plugin.Diagnose(err), "network")

	require.Len(t, run.Chunks, 2)
	assert.Equal(t, ChunkUnresolved, run.Chunks[0].Status)
	assert.Equal(t, ChunkUnresolved, run.Chunks[1].Status)
	assert.Empty(t, f.calls)
}

func TestExtract_NothingRecognised(t *testing.T) {
	res := &stubResolver{urls: map[string]string{"3": "https://bloxd.io/c3.js"}}
	f := &stubFetcher{bodies: map[string]string{"https://bloxd.io/c3.js": "console.log('hello')"}}

	run, err := newTestPipeline(t, DefaultConfig(), res, f).ExtractCanonicalItemList(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, plugin.ErrNotFound))
	assert.Equal(t, plugin.StageParse, plugin.StageOf(err))

	require.Len(t, run.Chunks, 2)
	assert.Equal(t, ChunkNoResult, run.Chunks[0].Status)
	assert.Len(t, run.Chunks[0].Attempts, len(extractor.DefaultOrder()))
	assert.Equal(t, ChunkUnresolved, run.Chunks[1].Status)
}

func TestExtract_SameURLScannedOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunks = []ChunkPlan{{ChunkID: "3"}, {ChunkID: "03"}}
	res := &stubResolver{urls: map[string]string{"3": "https://bloxd.io/c3.js", "03": "https://bloxd.io/c3.js"}}
	f := &stubFetcher{bodies: map[string]string{"https://bloxd.io/c3.js": enumChunk(120)}}

	run, err := newTestPipeline(t, cfg, res, f).ExtractCanonicalItemList(context.Background())
	require.NoError(t, err)
	assert.Len(t, run.Items, 120)
	assert.Equal(t, 1, f.calls["https://bloxd.io/c3.js"])
	assert.Equal(t, ChunkDuplicate, run.Chunks[1].Status)
}

func TestExtract_Policy(t *testing.T) {
	text := enumChunk(150) + arrayChunk(append([]string{"Dirt"}, fillers("Long", 299)...)...)
	res := &stubResolver{urls: map[string]string{"3": "https://bloxd.io/c3.js"}}
	f := &stubFetcher{bodies: map[string]string{"https://bloxd.io/c3.js": text}}

	cfg := DefaultConfig()
	cfg.Chunks = []ChunkPlan{{ChunkID: "3"}}

	run, err := newTestPipeline(t, cfg, res, f).ExtractCanonicalItemList(context.Background())
	require.NoError(t, err)
	assert.Len(t, run.Items, 150)
	assert.Len(t, run.Chunks[0].Attempts, 1, "first plausible result stops the cascade")

	cfg.Policy = PolicyLongest
	run, err = newTestPipeline(t, cfg, res, f).ExtractCanonicalItemList(context.Background())
	require.NoError(t, err)
	assert.Len(t, run.Items, 300)
	assert.Equal(t, extractor.StrategyStringArray, run.Chunks[0].Strategy)
	assert.Len(t, run.Chunks[0].Attempts, len(extractor.DefaultOrder()))
}

func TestExtract_ChunkStrategiesAndThresholds(t *testing.T) {
	res := &stubResolver{urls: map[string]string{"3": "https://bloxd.io/c3.js"}}
	f := &stubFetcher{bodies: map[string]string{"https://bloxd.io/c3.js": enumChunk(150)}}

	cfg := DefaultConfig()
	cfg.Chunks = []ChunkPlan{{ChunkID: "3", Strategies: []string{extractor.StrategyHeuristic}}}
	cfg.Thresholds[extractor.StrategyHeuristic] = 150

	rec := &recorder{}
	run, err := newTestPipeline(t, cfg, res, f, WithRecorder(rec)).ExtractCanonicalItemList(context.Background())
	require.Error(t, err)
	assert.Equal(t, plugin.StageParse, plugin.StageOf(err))
	require.Len(t, run.Chunks[0].Attempts, 1)
	assert.Equal(t, OutcomeImplausible, run.Chunks[0].Attempts[0].Outcome)
	assert.Equal(t, 150, run.Chunks[0].Attempts[0].Count)
	assert.Equal(t, []string{"heuristic:implausible"}, rec.strategies)
	assert.Equal(t, []string{"failure"}, rec.runs)
}

func TestExtract_Events(t *testing.T) {
	res := &stubResolver{urls: map[string]string{"3": "https://bloxd.io/c3.js"}}
	f := &stubFetcher{bodies: map[string]string{"https://bloxd.io/c3.js": enumChunk(120)}}
	events := make(chan plugin.RunEvent, 64)

	run, err := newTestPipeline(t, DefaultConfig(), res, f, WithEvents(events)).ExtractCanonicalItemList(context.Background())
	require.NoError(t, err)
	close(events)

	var types []plugin.EventType
	for ev := range events {
		assert.Equal(t, run.ID, ev.RunID)
		types = append(types, ev.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, plugin.EventRunStarted, types[0])
	assert.Equal(t, plugin.EventRunFinished, types[len(types)-1])
	assert.Contains(t, types, plugin.EventChunkSkipped)
	assert.Contains(t, types, plugin.EventStrategyResult)
}

func TestExtract_ContextCancelled(t *testing.T) {
	res := &stubResolver{urls: map[string]string{"3": "https://bloxd.io/c3.js"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline(t, DefaultConfig(), res, &stubFetcher{}).ExtractCanonicalItemList(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCanonicalize(t *testing.T) {
	got := Canonicalize([]string{"Dirt", "Stone", "Dirt", "Secret|Debug", "Air", "Stone"})
	assert.Equal(t, []string{"Dirt", "Stone", "Air"}, got)
	assert.Empty(t, Canonicalize(nil))
}

func TestConfigValidate(t *testing.T) {
	reg, err := extractor.NewRegistry(nil, extractor.DefaultLimits())
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"no manifest", func(c *Config) { c.ManifestURL = "" }, true},
		{"no chunks", func(c *Config) { c.Chunks = nil }, true},
		{"bad policy", func(c *Config) { c.Policy = "random" }, true},
		{"unknown cascade strategy", func(c *Config) { c.Cascade = []string{"magic"} }, true},
		{"unknown chunk strategy", func(c *Config) { c.Chunks[0].Strategies = []string{"magic"} }, true},
		{"negative threshold", func(c *Config) { c.Thresholds["anchor"] = -1 }, true},
		{"empty chunk id", func(c *Config) { c.Chunks[0].ChunkID = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate(reg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
