// Package session owns the loaded item list and dictionary and replaces them
// atomically on every successful refresh.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomoru1741/Bloxd-Tools/internal/coverage"
	"github.com/tomoru1741/Bloxd-Tools/internal/dictionary"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
	"github.com/tomoru1741/Bloxd-Tools/internal/storage"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ItemSource produces the canonical item list.
type ItemSource interface {
	ExtractCanonicalItemList(ctx context.Context) (*pipeline.Run, error)
}

// DictionarySource produces the translation dictionary.
type DictionarySource interface {
	Load(ctx context.Context) (dictionary.Map, error)
}

// History stores refresh records.
type History interface {
	RecordRun(ctx context.Context, rec *storage.RunRecord) error
}

// LoadMode says whether the two sources load in parallel.
type LoadMode string

const (
	LoadConcurrent LoadMode = "concurrent"
	// LoadSequential loads the item list first, then the dictionary.
	LoadSequential LoadMode = "sequential"
)

// Snapshot is an immutable view of the session state. Callers must not
// modify the slices or maps it holds.
type Snapshot struct {
	Items           []string       `json:"items"`
	Dictionary      dictionary.Map `json:"-"`
	ItemsGeneration uint64         `json:"items_generation"`
	DictGeneration  uint64         `json:"dict_generation"`
	ItemsRunID      string         `json:"items_run_id,omitempty"`
	ItemsLoadedAt   time.Time      `json:"items_loaded_at"`
	DictLoadedAt    time.Time      `json:"dict_loaded_at"`
}

// Outcome reports one refresh.
type Outcome struct {
	Generation     uint64        `json:"generation"`
	Run            *pipeline.Run `json:"run,omitempty"`
	ItemsErr       error         `json:"-"`
	DictErr        error         `json:"-"`
	ItemsCommitted bool          `json:"items_committed"`
	DictCommitted  bool          `json:"dict_committed"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Err joins the per-source errors.
func (o *Outcome) Err() error {
	return errors.Join(o.ItemsErr, o.DictErr)
}

// Session is the top-level application state.
type Session struct {
	items   ItemSource
	dict    DictionarySource
	mode    LoadMode
	logger  *zap.Logger
	history History

	genMu sync.Mutex
	gen   uint64

	mu       sync.RWMutex
	snap     Snapshot
	itemsErr error
	dictErr  error
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithLoadMode(m LoadMode) Option {
	return func(s *Session) {
		if m != "" {
			s.mode = m
		}
	}
}

// WithHistory records every refresh in h.
func WithHistory(h History) Option {
	return func(s *Session) { s.history = h }
}

// New creates an empty session.
func New(items ItemSource, dict DictionarySource, opts ...Option) *Session {
	s := &Session{
		items:  items,
		dict:   dict,
		mode:   LoadConcurrent,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the configured load mode.
func (s *Session) Mode() LoadMode { return s.mode }

func (s *Session) nextGeneration() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gen++
	return s.gen
}

// Refresh reloads both sources. A failed source keeps its previous value.
// The returned error joins the per-source failures.
func (s *Session) Refresh(ctx context.Context) (*Outcome, error) {
	out := &Outcome{Generation: s.nextGeneration(), StartedAt: time.Now()}

	switch s.mode {
	case LoadSequential:
		s.loadItems(ctx, out)
		s.loadDictionary(ctx, out)
	default:
		var g errgroup.Group
		g.Go(func() error {
			s.loadItems(ctx, out)
			return nil
		})
		g.Go(func() error {
			s.loadDictionary(ctx, out)
			return nil
		})
		_ = g.Wait()
	}

	out.FinishedAt = time.Now()
	s.record(ctx, storage.KindFull, out)
	return out, out.Err()
}

// RefreshItems reloads only the item list.
func (s *Session) RefreshItems(ctx context.Context) (*Outcome, error) {
	out := &Outcome{Generation: s.nextGeneration(), StartedAt: time.Now()}
	s.loadItems(ctx, out)
	out.FinishedAt = time.Now()
	s.record(ctx, storage.KindItems, out)
	return out, out.ItemsErr
}

// RefreshDictionary reloads only the dictionary.
func (s *Session) RefreshDictionary(ctx context.Context) (*Outcome, error) {
	out := &Outcome{Generation: s.nextGeneration(), StartedAt: time.Now()}
	s.loadDictionary(ctx, out)
	out.FinishedAt = time.Now()
	s.record(ctx, storage.KindDictionary, out)
	return out, out.DictErr
}

// loadItems writes only the item fields of out.
func (s *Session) loadItems(ctx context.Context, out *Outcome) {
	run, err := s.items.ExtractCanonicalItemList(ctx)
	out.Run = run

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		out.ItemsErr = err
		s.itemsErr = err
		s.logger.Warn("Item refresh failed, keeping previous list",
			zap.Uint64("generation", out.Generation),
			zap.Int("kept", len(s.snap.Items)),
			zap.Error(err))
		return
	}
	if out.Generation <= s.snap.ItemsGeneration {
		s.logger.Info("Discarding stale item list",
			zap.Uint64("generation", out.Generation),
			zap.Uint64("committed", s.snap.ItemsGeneration))
		return
	}
	s.snap.Items = run.Items
	s.snap.ItemsGeneration = out.Generation
	s.snap.ItemsRunID = run.ID
	s.snap.ItemsLoadedAt = time.Now()
	s.itemsErr = nil
	out.ItemsCommitted = true
}

// loadDictionary writes only the dictionary fields of out.
func (s *Session) loadDictionary(ctx context.Context, out *Outcome) {
	m, err := s.dict.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		out.DictErr = err
		s.dictErr = err
		s.logger.Warn("Dictionary refresh failed, keeping previous dictionary",
			zap.Uint64("generation", out.Generation),
			zap.Int("kept", len(s.snap.Dictionary)),
			zap.Error(err))
		return
	}
	if out.Generation <= s.snap.DictGeneration {
		s.logger.Info("Discarding stale dictionary",
			zap.Uint64("generation", out.Generation),
			zap.Uint64("committed", s.snap.DictGeneration))
		return
	}
	s.snap.Dictionary = m
	s.snap.DictGeneration = out.Generation
	s.snap.DictLoadedAt = time.Now()
	s.dictErr = nil
	out.DictCommitted = true
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// LastErrors returns the most recent failure of each source, nil after a
// successful load.
func (s *Session) LastErrors() (items, dict error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemsErr, s.dictErr
}

// Coverage compares the current item list with the current dictionary.
func (s *Session) Coverage() *coverage.Report {
	snap := s.Snapshot()
	return coverage.Compare(snap.Items, snap.Dictionary)
}

// Groups returns the current missing-item runs.
func (s *Session) Groups() []coverage.MissingGroup {
	snap := s.Snapshot()
	return coverage.Groups(snap.Items, snap.Dictionary)
}

func (s *Session) record(ctx context.Context, kind string, out *Outcome) {
	if s.history == nil {
		return
	}
	rec := &storage.RunRecord{
		Generation: out.Generation,
		Kind:       kind,
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
		Committed:  out.ItemsCommitted || out.DictCommitted,
	}

	var failed []error
	attempted := 0
	if kind != storage.KindDictionary {
		attempted++
		if out.ItemsErr != nil {
			failed = append(failed, out.ItemsErr)
		}
		if out.Run != nil {
			rec.ID = out.Run.ID
			rec.ItemCount = len(out.Run.Items)
			rec.Chunks = out.Run.Chunks
		}
	}
	if kind != storage.KindItems {
		attempted++
		if out.DictErr != nil {
			failed = append(failed, out.DictErr)
		}
	}
	if out.DictCommitted {
		rec.DictCount = len(s.Snapshot().Dictionary)
	}

	switch {
	case len(failed) == 0:
		rec.Outcome = storage.OutcomeSuccess
	case len(failed) < attempted:
		rec.Outcome = storage.OutcomePartial
	default:
		rec.Outcome = storage.OutcomeFailure
	}
	if len(failed) > 0 {
		rec.Stage = string(plugin.StageOf(failed[0]))
		rec.Error = errors.Join(failed...).Error()
	}

	if err := s.history.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("Failed to record run", zap.Error(fmt.Errorf("generation %d: %w", out.Generation, err)))
	}
}
