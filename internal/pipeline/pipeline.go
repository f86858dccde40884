// Package pipeline runs the chunk plan against a bundle and produces the
// canonical item list.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tomoru1741/Bloxd-Tools/internal/extractor"
	"github.com/tomoru1741/Bloxd-Tools/internal/fetcher"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/zap"
)

// ChunkResolver turns chunk ids into chunk URLs.
type ChunkResolver interface {
	ResolveChunkURLs(ctx context.Context, manifestURL string, chunkIDs []string) ([]plugin.ChunkReference, error)
}

// TextFetcher downloads a chunk through the relay list.
type TextFetcher interface {
	Fetch(ctx context.Context, target string, expect fetcher.Expect) (*plugin.Response, error)
}

// Recorder receives run statistics. metrics.Collector implements it.
type Recorder interface {
	ObserveStrategy(strategy, outcome string, items int)
	ObserveRun(outcome string, d time.Duration, items int)
}

// Strategy outcome labels.
const (
	OutcomePlausible   = "plausible"
	OutcomeImplausible = "implausible"
	OutcomeNoResult    = "no-result"
	OutcomeFailed      = "failed"
)

// ChunkStatus describes what happened to one planned chunk.
type ChunkStatus string

const (
	ChunkExtracted   ChunkStatus = "extracted"
	ChunkNoResult    ChunkStatus = "no-result"
	ChunkFetchFailed ChunkStatus = "fetch-failed"
	ChunkUnresolved  ChunkStatus = "unresolved"
	ChunkDuplicate   ChunkStatus = "duplicate"
)

// StrategyAttempt is one strategy run over one chunk.
type StrategyAttempt struct {
	Strategy string `json:"strategy"`
	Outcome  string `json:"outcome"`
	Count    int    `json:"count"`
	Error    string `json:"error,omitempty"`
}

// ChunkOutcome reports how one planned chunk was handled.
type ChunkOutcome struct {
	ChunkID  string            `json:"chunk_id"`
	URL      string            `json:"url,omitempty"`
	Relay    string            `json:"relay,omitempty"`
	Status   ChunkStatus       `json:"status"`
	Strategy string            `json:"strategy,omitempty"`
	Count    int               `json:"count"`
	Attempts []StrategyAttempt `json:"attempts,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Run is the result of one extraction.
type Run struct {
	ID         string         `json:"id"`
	Items      []string       `json:"items"`
	Chunks     []ChunkOutcome `json:"chunks"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Pipeline is the engine that orchestrates resolving, fetching and extracting.
type Pipeline struct {
	config   *Config
	resolver ChunkResolver
	fetch    TextFetcher
	registry atomic.Pointer[extractor.Registry]
	logger   *zap.Logger
	recorder Recorder
	events   chan<- plugin.RunEvent
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithEvents streams run events to ch. Sends never block; events are dropped
// when ch is full.
func WithEvents(ch chan<- plugin.RunEvent) Option {
	return func(p *Pipeline) { p.events = ch }
}

// New creates a Pipeline.
func New(config *Config, resolver ChunkResolver, fetch TextFetcher, registry *extractor.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:   config,
		resolver: resolver,
		fetch:    fetch,
		logger:   zap.NewNop(),
	}
	p.registry.Store(registry)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRegistry replaces the strategy registry used by subsequent runs.
func (p *Pipeline) SetRegistry(reg *extractor.Registry) {
	p.registry.Store(reg)
}

// ExtractCanonicalItemList resolves the planned chunks, runs the strategies
// over each one and returns the concatenated, deduplicated item list.
// On failure the returned error is a *plugin.StageError; the Run is still
// returned so callers can report per-chunk outcomes.
func (p *Pipeline) ExtractCanonicalItemList(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Chunks:    make([]ChunkOutcome, 0, len(p.config.Chunks)),
		StartedAt: time.Now(),
	}

	p.emit(plugin.RunEvent{
		Type:    plugin.EventRunStarted,
		RunID:   run.ID,
		URL:     p.config.ManifestURL,
		Message: fmt.Sprintf("Resolving %d chunk(s) from %s", len(p.config.Chunks), p.config.ManifestURL),
	})

	refs, err := p.resolver.ResolveChunkURLs(ctx, p.config.ManifestURL, p.config.ChunkIDs())
	if err != nil {
		return p.fail(run, &plugin.StageError{Stage: plugin.StageManifest, Err: err})
	}
	p.emit(plugin.RunEvent{
		Type:    plugin.EventManifestResolved,
		RunID:   run.ID,
		Count:   len(refs),
		Message: fmt.Sprintf("Manifest resolved %d of %d chunk(s)", len(refs), len(p.config.Chunks)),
	})

	byID := make(map[string]plugin.ChunkReference, len(refs))
	for _, ref := range refs {
		byID[ref.ChunkID] = ref
	}

	var (
		all         []string
		resolvedAny bool
		fetchedAny  bool
		scanned     = make(map[string]bool)
	)
	for _, plan := range p.config.Chunks {
		if err := ctx.Err(); err != nil {
			return p.fail(run, err)
		}

		ref, ok := byID[plan.ChunkID]
		if !ok {
			p.skip(run, ChunkOutcome{ChunkID: plan.ChunkID, Status: ChunkUnresolved, Error: plugin.ErrManifestChunkNotFound.Error()})
			continue
		}
		resolvedAny = true
		if scanned[ref.URL] {
			p.skip(run, ChunkOutcome{ChunkID: plan.ChunkID, URL: ref.URL, Status: ChunkDuplicate})
			continue
		}
		scanned[ref.URL] = true

		resp, err := p.fetch.Fetch(ctx, ref.URL, fetcher.ExpectText)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return p.fail(run, ctxErr)
			}
			p.logger.Warn("Chunk fetch failed", zap.String("chunk", plan.ChunkID), zap.String("url", ref.URL), zap.Error(err))
			run.Chunks = append(run.Chunks, ChunkOutcome{ChunkID: plan.ChunkID, URL: ref.URL, Status: ChunkFetchFailed, Error: err.Error()})
			p.emit(plugin.RunEvent{
				Type:    plugin.EventChunkError,
				RunID:   run.ID,
				ChunkID: plan.ChunkID,
				URL:     ref.URL,
				Error:   err,
				Message: fmt.Sprintf("Error fetching chunk %s: %v", plan.ChunkID, err),
			})
			continue
		}
		fetchedAny = true
		p.emit(plugin.RunEvent{
			Type:    plugin.EventChunkFetched,
			RunID:   run.ID,
			ChunkID: plan.ChunkID,
			URL:     ref.URL,
			Count:   len(resp.Body),
			Message: fmt.Sprintf("Fetched chunk %s via %s (%d bytes)", plan.ChunkID, resp.Relay, len(resp.Body)),
		})

		outcome := p.extractChunk(run.ID, plan, resp.Text())
		outcome.URL, outcome.Relay = ref.URL, resp.Relay
		run.Chunks = append(run.Chunks, outcome.ChunkOutcome)
		all = append(all, outcome.names...)

		p.emit(plugin.RunEvent{
			Type:     plugin.EventChunkDone,
			RunID:    run.ID,
			ChunkID:  plan.ChunkID,
			URL:      ref.URL,
			Strategy: outcome.Strategy,
			Count:    outcome.Count,
			Message:  fmt.Sprintf("Chunk %s: %d item(s) via %s", plan.ChunkID, outcome.Count, strategyLabel(outcome.Strategy)),
		})
	}

	run.Items = Canonicalize(all)
	if !resolvedAny {
		return p.fail(run, unresolvedPlan(len(p.config.Chunks)))
	}
	if len(run.Items) == 0 {
		stage := plugin.StageParse
		if !fetchedAny {
			stage = plugin.StageChunkFetch
		}
		return p.fail(run, &plugin.StageError{
			Stage: stage,
			Err:   fmt.Errorf("%w: %d chunk(s) planned", plugin.ErrNotFound, len(p.config.Chunks)),
		})
	}

	run.FinishedAt = time.Now()
	p.observeRun("success", run)
	p.emit(plugin.RunEvent{
		Type:    plugin.EventRunFinished,
		RunID:   run.ID,
		Count:   len(run.Items),
		Message: fmt.Sprintf("Extraction complete. %d item(s) from %d chunk(s).", len(run.Items), len(run.Chunks)),
	})
	return run, nil
}

type chunkResult struct {
	ChunkOutcome
	names []string
}

// extractChunk runs the chunk's strategies according to the policy.
func (p *Pipeline) extractChunk(runID string, plan ChunkPlan, text string) chunkResult {
	order := plan.Strategies
	if len(order) == 0 {
		order = p.config.Cascade
	}
	if len(order) == 0 {
		order = extractor.DefaultOrder()
	}

	reg := p.registry.Load()
	out := chunkResult{ChunkOutcome: ChunkOutcome{ChunkID: plan.ChunkID, Status: ChunkNoResult}}
	for _, name := range order {
		s, ok := reg.Get(name)
		if !ok {
			out.Attempts = append(out.Attempts, StrategyAttempt{Strategy: name, Outcome: OutcomeFailed, Error: "unknown strategy"})
			continue
		}

		res := extractor.Run(s, text)
		attempt := StrategyAttempt{Strategy: name, Count: len(res.Names)}
		switch {
		case res.Err != nil && !errors.Is(res.Err, plugin.ErrParseNoResult):
			attempt.Outcome, attempt.Error = OutcomeFailed, res.Err.Error()
			p.logger.Warn("Strategy failed", zap.String("chunk", plan.ChunkID), zap.String("strategy", name), zap.Error(res.Err))
		case res.Err != nil:
			attempt.Outcome = OutcomeNoResult
		case len(res.Names) > p.config.Threshold(name):
			attempt.Outcome = OutcomePlausible
		default:
			attempt.Outcome = OutcomeImplausible
		}
		out.Attempts = append(out.Attempts, attempt)

		if p.recorder != nil {
			p.recorder.ObserveStrategy(name, attempt.Outcome, attempt.Count)
		}
		p.logger.Debug("Strategy result",
			zap.String("chunk", plan.ChunkID),
			zap.String("strategy", name),
			zap.String("outcome", attempt.Outcome),
			zap.Int("count", attempt.Count))
		p.emit(plugin.RunEvent{
			Type:     plugin.EventStrategyResult,
			RunID:    runID,
			ChunkID:  plan.ChunkID,
			Strategy: name,
			Count:    attempt.Count,
			Message:  attempt.Outcome,
		})

		if attempt.Outcome != OutcomePlausible {
			continue
		}
		if len(res.Names) > len(out.names) {
			out.names = res.Names
			out.Strategy = name
			out.Count = len(res.Names)
			out.Status = ChunkExtracted
		}
		if p.config.Policy != PolicyLongest {
			break
		}
	}
	return out
}

// Canonicalize keeps the first occurrence of every name and drops names
// carrying the internal-variant marker "|".
func Canonicalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.Contains(n, "|") {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// unresolvedPlan is the terminal error for a manifest that names none of the
// planned chunks.
func unresolvedPlan(planned int) error {
	return &plugin.StageError{
		Stage: plugin.StageManifest,
		Err:   fmt.Errorf("%w: %w for %d planned chunk(s)", plugin.ErrNotFound, plugin.ErrManifestChunkNotFound, planned),
	}
}

func (p *Pipeline) skip(run *Run, outcome ChunkOutcome) {
	p.logger.Warn("Chunk skipped", zap.String("chunk", outcome.ChunkID), zap.String("status", string(outcome.Status)))
	run.Chunks = append(run.Chunks, outcome)
	p.emit(plugin.RunEvent{
		Type:    plugin.EventChunkSkipped,
		RunID:   run.ID,
		ChunkID: outcome.ChunkID,
		URL:     outcome.URL,
		Message: fmt.Sprintf("Chunk %s skipped (%s)", outcome.ChunkID, outcome.Status),
	})
}

func (p *Pipeline) fail(run *Run, err error) (*Run, error) {
	run.FinishedAt = time.Now()
	p.logger.Error("Extraction failed", zap.String("run", run.ID), zap.Error(err))
	p.observeRun("failure", run)
	p.emit(plugin.RunEvent{
		Type:    plugin.EventRunFailed,
		RunID:   run.ID,
		Error:   err,
		Message: plugin.Diagnose(err),
	})
	return run, err
}

func (p *Pipeline) observeRun(outcome string, run *Run) {
	if p.recorder != nil {
		p.recorder.ObserveRun(outcome, run.Duration(), len(run.Items))
	}
}

// emit sends an event to the event channel (non-blocking).
func (p *Pipeline) emit(event plugin.RunEvent) {
	if p.events == nil {
		return
	}
	select {
	case p.events <- event:
	default:
	}
}

func strategyLabel(s string) string {
	if s == "" {
		return "no strategy"
	}
	return s
}
