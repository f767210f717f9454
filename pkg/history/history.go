// Package history keeps a SQLite record of every run and its latest
// status.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ritzau/msedit/pkg/run"
)

//go:embed schema.sql
var schemaSQL string

// Queued is the status of a run that has not reported yet
const Queued run.Kind = "queued"

// ErrNotFound is returned for unknown run IDs
var ErrNotFound = errors.New("run not found")

// Record is one run as last reported
type Record struct {
	ID          string     `json:"id"`
	ModelSystem string     `json:"model_system"`
	Start       string     `json:"start"`
	User        string     `json:"user"`
	Status      run.Kind   `json:"status"`
	Progress    float64    `json:"progress"`
	Message     string     `json:"message,omitempty"`
	Created     time.Time  `json:"created"`
	Updated     time.Time  `json:"updated"`
	Finished    *time.Time `json:"finished,omitempty"`
}

// Store is a run history database
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// one writer at a time; run events arrive from many goroutines
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin records a newly dispatched run
func (s *Store) Begin(ctx context.Context, req run.Request) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, model_system, start, user, status, created, updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ModelSystem, req.Start, req.User, string(Queued), now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", req.ID, err)
	}
	return nil
}

// Record stores ev as the latest status of its run
func (s *Store) Record(ctx context.Context, ev run.Event) error {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var finished any
	if ev.Kind.Terminal() {
		finished = ts.UnixMilli()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, progress = ?, message = ?, updated = ?, finished = COALESCE(?, finished)
		 WHERE id = ?`,
		string(ev.Kind), ev.Progress, ev.Message, ts.UnixMilli(), finished, ev.RunID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", ev.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ev.RunID)
	}
	return nil
}

// Observe records every event passing through events. Recording failures
// go to onError and never stop the stream.
func (s *Store) Observe(events <-chan run.Event, onError func(error)) <-chan run.Event {
	out := make(chan run.Event, cap(events))
	go func() {
		defer close(out)
		for ev := range events {
			if err := s.Record(context.Background(), ev); err != nil && onError != nil {
				onError(err)
			}
			out <- ev
		}
	}()
	return out
}

const selectRuns = `SELECT id, model_system, start, user, status, progress, message, created, updated, finished FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*Record, error) {
	var r Record
	var status string
	var created, updated int64
	var finished sql.NullInt64
	if err := row.Scan(&r.ID, &r.ModelSystem, &r.Start, &r.User, &status, &r.Progress, &r.Message, &created, &updated, &finished); err != nil {
		return nil, err
	}
	r.Status = run.Kind(status)
	r.Created = time.UnixMilli(created)
	r.Updated = time.UnixMilli(updated)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		r.Finished = &t
	}
	return &r, nil
}

// Get returns the run with the given ID
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	r, err := scan(s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit runs, newest first
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY created DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
