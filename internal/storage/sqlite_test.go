package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	rec := &RunRecord{
		Generation: 7,
		Kind:       KindFull,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Outcome:    OutcomePartial,
		Stage:      "dictionary",
		Error:      "all relays failed",
		ItemCount:  1200,
		Committed:  true,
		Chunks: []pipeline.ChunkOutcome{
			{ChunkID: "3", Status: pipeline.ChunkExtracted, Strategy: "anchor", Count: 1200},
		},
	}
	require.NoError(t, s.RecordRun(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := s.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(7), got.Generation)
	assert.Equal(t, KindFull, got.Kind)
	assert.Equal(t, OutcomePartial, got.Outcome)
	assert.Equal(t, "dictionary", got.Stage)
	assert.Equal(t, 1200, got.ItemCount)
	assert.True(t, got.Committed)
	assert.True(t, got.StartedAt.Equal(start))
	assert.Equal(t, rec.Chunks, got.Chunks)

	missing, err := s.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(ctx, &RunRecord{
			Generation: uint64(i + 1),
			Kind:       KindItems,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
			Outcome:    OutcomeSuccess,
		}))
	}

	runs, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, uint64(5), runs[0].Generation)
	assert.Equal(t, uint64(3), runs[2].Generation)
	assert.Nil(t, runs[0].Chunks)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
