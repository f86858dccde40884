package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoru1741/Bloxd-Tools/internal/dictionary"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
	"github.com/tomoru1741/Bloxd-Tools/internal/storage"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/goleak"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type itemStub struct {
	mu    sync.Mutex
	calls int
	items [][]string
	errs  []error
	gates []chan struct{}
}

func (s *itemStub) ExtractCanonicalItemList(ctx context.Context) (*pipeline.Run, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()

	if i < len(s.gates) && s.gates[i] != nil {
		<-s.gates[i]
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &pipeline.Run{ID: "run", Items: s.items[i]}, nil
}

type dictStub struct {
	mu    sync.Mutex
	calls int
	maps  []dictionary.Map
	errs  []error
}

func (s *dictStub) Load(ctx context.Context) (dictionary.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.maps[i], nil
}

type historyStub struct {
	mu   sync.Mutex
	recs []storage.RunRecord
}

func (h *historyStub) RecordRun(ctx context.Context, rec *storage.RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, *rec)
	return nil
}

func TestRefresh_CommitsBoth(t *testing.T) {
	for _, mode := range []LoadMode{LoadConcurrent, LoadSequential} {
		t.Run(string(mode), func(t *testing.T) {
			items := &itemStub{items: [][]string{{"Dirt", "Stone", "Air"}}}
			dict := &dictStub{maps: []dictionary.Map{{"Dirt": "土", "Air": "空気"}}}
			hist := &historyStub{}
			s := New(items, dict, WithLoadMode(mode), WithHistory(hist))

			out, err := s.Refresh(context.Background())
			require.NoError(t, err)
			assert.True(t, out.ItemsCommitted)
			assert.True(t, out.DictCommitted)

			snap := s.Snapshot()
			assert.Equal(t, []string{"Dirt", "Stone", "Air"}, snap.Items)
			assert.Equal(t, uint64(1), snap.ItemsGeneration)
			assert.Equal(t, uint64(1), snap.DictGeneration)
			assert.Equal(t, 66.7, s.Coverage().Coverage)
			require.Len(t, s.Groups(), 1)

			require.Len(t, hist.recs, 1)
			assert.Equal(t, storage.KindFull, hist.recs[0].Kind)
			assert.Equal(t, storage.OutcomeSuccess, hist.recs[0].Outcome)
			assert.Equal(t, 3, hist.recs[0].ItemCount)
			assert.Equal(t, 2, hist.recs[0].DictCount)
		})
	}
}

func TestRefresh_FailureKeepsPrevious(t *testing.T) {
	dictErr := &plugin.StageError{Stage: plugin.StageDictionary, Err: plugin.ErrProxyExhausted}
	items := &itemStub{items: [][]string{{"Dirt"}, {"Dirt", "Stone"}}}
	dict := &dictStub{
		maps: []dictionary.Map{{"Dirt": "土"}, nil},
		errs: []error{nil, dictErr},
	}
	hist := &historyStub{}
	s := New(items, dict, WithHistory(hist))

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	out, err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, plugin.ErrProxyExhausted)
	assert.True(t, out.ItemsCommitted)
	assert.False(t, out.DictCommitted)

	snap := s.Snapshot()
	assert.Equal(t, []string{"Dirt", "Stone"}, snap.Items)
	assert.Equal(t, dictionary.Map{"Dirt": "土"}, snap.Dictionary)
	assert.Equal(t, uint64(2), snap.ItemsGeneration)
	assert.Equal(t, uint64(1), snap.DictGeneration)

	itemsErr, lastDictErr := s.LastErrors()
	assert.NoError(t, itemsErr)
	assert.ErrorIs(t, lastDictErr, plugin.ErrProxyExhausted)

	require.Len(t, hist.recs, 2)
	assert.Equal(t, storage.OutcomePartial, hist.recs[1].Outcome)
	assert.Equal(t, string(plugin.StageDictionary), hist.recs[1].Stage)
	assert.True(t, hist.recs[1].Committed)
}

func TestRefreshItems_FailureRecorded(t *testing.T) {
	items := &itemStub{errs: []error{errors.New("boom")}, items: [][]string{nil}}
	hist := &historyStub{}
	s := New(items, &dictStub{}, WithHistory(hist))

	out, err := s.RefreshItems(context.Background())
	require.Error(t, err)
	assert.False(t, out.ItemsCommitted)
	assert.Empty(t, s.Snapshot().Items)

	require.Len(t, hist.recs, 1)
	assert.Equal(t, storage.KindItems, hist.recs[0].Kind)
	assert.Equal(t, storage.OutcomeFailure, hist.recs[0].Outcome)
	assert.False(t, hist.recs[0].Committed)
}

func TestRefreshDictionary_OnlyTouchesDictionary(t *testing.T) {
	items := &itemStub{}
	dict := &dictStub{maps: []dictionary.Map{{"Dirt": "土"}}}
	s := New(items, dict)

	out, err := s.RefreshDictionary(context.Background())
	require.NoError(t, err)
	assert.True(t, out.DictCommitted)
	assert.Equal(t, 0, items.calls)
	assert.Equal(t, dictionary.Map{"Dirt": "土"}, s.Snapshot().Dictionary)
	assert.Equal(t, uint64(0), s.Snapshot().ItemsGeneration)
}

func TestRefreshItems_StaleResultDiscarded(t *testing.T) {
	slow := make(chan struct{})
	items := &itemStub{
		items: [][]string{{"Old"}, {"New"}},
		gates: []chan struct{}{slow, nil},
	}
	s := New(items, &dictStub{})

	var wg sync.WaitGroup
	var staleOut *Outcome
	wg.Add(1)
	go func() {
		defer wg.Done()
		staleOut, _ = s.RefreshItems(context.Background())
	}()

	// wait until the first refresh has taken generation 1
	require.Eventually(t, func() bool {
		items.mu.Lock()
		defer items.mu.Unlock()
		return items.calls == 1
	}, timeout, tick)

	fresh, err := s.RefreshItems(context.Background())
	require.NoError(t, err)
	assert.True(t, fresh.ItemsCommitted)
	assert.Equal(t, uint64(2), fresh.Generation)

	close(slow)
	wg.Wait()

	assert.Equal(t, uint64(1), staleOut.Generation)
	assert.False(t, staleOut.ItemsCommitted)
	assert.Equal(t, []string{"New"}, s.Snapshot().Items)
	assert.Equal(t, uint64(2), s.Snapshot().ItemsGeneration)
}
