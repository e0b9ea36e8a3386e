// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite ledger of batch conversion runs and the
// outcome of every file in them.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/p7m-converter/pkg/types"
)

// ErrNotFound is returned by Get for an unknown batch ID.
var ErrNotFound = errors.New("batch not found")

const defaultListLimit = 20

// Batch is one recorded run.
type Batch struct {
	ID         string          `json:"id" yaml:"id"`
	Dir        string          `json:"dir" yaml:"dir"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
	Total      int             `json:"total" yaml:"total"`
	Converted  int             `json:"converted" yaml:"converted"`
	Failed     int             `json:"failed" yaml:"failed"`
	Skipped    int             `json:"skipped" yaml:"skipped"`
	Outcomes   []types.Outcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and its schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			total INTEGER NOT NULL,
			converted INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			PRIMARY KEY (batch_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a finished job. Recording the same job twice replaces the
// earlier row.
func (s *Store) Record(ctx context.Context, job *types.ConversionJob) error {
	var converted, failed, skipped int
	for _, o := range job.Outcomes {
		switch o.Status {
		case types.OutcomeSuccess:
			converted++
		case types.OutcomeFailed:
			failed++
		case types.OutcomeSkipped, types.OutcomePending:
			skipped++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE batch_id = ?`, job.ID); err != nil {
		return fmt.Errorf("clearing old outcomes: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, dir, started_at, finished_at, total, converted, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			dir=excluded.dir, started_at=excluded.started_at, finished_at=excluded.finished_at,
			total=excluded.total, converted=excluded.converted, failed=excluded.failed,
			skipped=excluded.skipped`,
		job.ID, job.Dir, formatTime(job.StartedAt), formatTime(job.FinishedAt),
		len(job.Inputs), converted, failed, skipped,
	)
	if err != nil {
		return fmt.Errorf("inserting batch %s: %w", job.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (batch_id, position, input, output, status, reason) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range job.Outcomes {
		if _, err := stmt.ExecContext(ctx, job.ID, i, o.Input, o.Output, string(o.Status), o.Reason); err != nil {
			return fmt.Errorf("inserting outcome %d of %s: %w", i, job.ID, err)
		}
	}

	return tx.Commit()
}

// List returns the most recent batches, newest first, without outcomes.
// A non-positive limit uses the default of 20.
func (s *Store) List(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dir, started_at, finished_at, total, converted, failed, skipped
		 FROM batches ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Get returns one batch with its outcomes in job order.
func (s *Store) Get(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dir, started_at, finished_at, total, converted, failed, skipped
		 FROM batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT input, output, status, COALESCE(reason, '') FROM outcomes WHERE batch_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o types.Outcome
		var status string
		if err := rows.Scan(&o.Input, &o.Output, &status, &o.Reason); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Status = types.OutcomeStatus(status)
		b.Outcomes = append(b.Outcomes, o)
	}
	return &b, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(sc scanner) (Batch, error) {
	var b Batch
	var started string
	var finished sql.NullString
	if err := sc.Scan(&b.ID, &b.Dir, &started, &finished, &b.Total, &b.Converted, &b.Failed, &b.Skipped); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("scanning batch: %w", err)
	}
	b.StartedAt = parseTime(started)
	if finished.Valid {
		b.FinishedAt = parseTime(finished.String)
	}
	return b, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
