// Package storage keeps the refresh history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
)

// Refresh kinds.
const (
	KindFull       = "full"
	KindItems      = "items"
	KindDictionary = "dictionary"
)

// Refresh outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
)

// RunRecord is one refresh as stored in the history.
type RunRecord struct {
	ID         string                  `json:"id"`
	Generation uint64                  `json:"generation"`
	Kind       string                  `json:"kind"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Outcome    string                  `json:"outcome"`
	Stage      string                  `json:"stage,omitempty"`
	Error      string                  `json:"error,omitempty"`
	ItemCount  int                     `json:"item_count"`
	DictCount  int                     `json:"dict_count"`
	Committed  bool                    `json:"committed"`
	Chunks     []pipeline.ChunkOutcome `json:"chunks,omitempty"`
}

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			generation INTEGER NOT NULL,
			kind TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			outcome TEXT NOT NULL,
			stage TEXT,
			error TEXT,
			item_count INTEGER DEFAULT 0,
			dict_count INTEGER DEFAULT 0,
			committed INTEGER DEFAULT 0,
			chunks TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// RecordRun stores rec, assigning an id when it has none.
func (s *Store) RecordRun(ctx context.Context, rec *RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	chunks, err := json.Marshal(rec.Chunks)
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, generation, kind, started_at, finished_at, outcome, stage, error, item_count, dict_count, committed, chunks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, int64(rec.Generation), rec.Kind, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
		rec.Outcome, rec.Stage, rec.Error, rec.ItemCount, rec.DictCount, rec.Committed, string(chunks))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generation, kind, started_at, finished_at, outcome, stage, error, item_count, dict_count, committed, chunks
		FROM runs ORDER BY started_at DESC, generation DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	return runs, rows.Err()
}

// GetRun returns a run by id, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, generation, kind, started_at, finished_at, outcome, stage, error, item_count, dict_count, committed, chunks
		FROM runs WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*RunRecord, error) {
	var (
		rec          RunRecord
		gen          int64
		stage, msg   sql.NullString
		chunks       sql.NullString
		committedInt int
	)
	err := sc.Scan(&rec.ID, &gen, &rec.Kind, &rec.StartedAt, &rec.FinishedAt,
		&rec.Outcome, &stage, &msg, &rec.ItemCount, &rec.DictCount, &committedInt, &chunks)
	if err != nil {
		return nil, err
	}
	rec.Generation = uint64(gen)
	rec.Stage = stage.String
	rec.Error = msg.String
	rec.Committed = committedInt != 0
	if chunks.Valid && chunks.String != "" && chunks.String != "null" {
		if err := json.Unmarshal([]byte(chunks.String), &rec.Chunks); err != nil {
			return nil, fmt.Errorf("decode chunks of run %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
