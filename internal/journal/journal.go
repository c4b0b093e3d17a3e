// Package journal keeps a SQLite record of page move runs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is the outcome of one page within a run.
type Entry struct {
	Origin string `json:"origin"`
	Dest   string `json:"dest"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Run is one move of a page tree.
type Run struct {
	ID       string    `json:"id"`
	Origin   string    `json:"origin"`
	Dest     string    `json:"dest"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Entries  []Entry   `json:"entries"`
}

// Journal stores runs in a SQLite database.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates the journal database at path.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	log.Info("move journal opened", "path", path)
	return &Journal{db: db, log: log}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			origin      TEXT NOT NULL,
			dest        TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS entries (
			run_id  TEXT NOT NULL,
			seq     INTEGER NOT NULL,
			origin  TEXT NOT NULL,
			dest    TEXT NOT NULL,
			status  TEXT NOT NULL,
			error   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY(run_id) REFERENCES runs(id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores run and its entries. A run without an id gets one. Writes
// that find the database locked are retried.
func (j *Journal) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = NewID()
	}
	if err := withRetry(ctx, func() error { return j.insert(ctx, run) }); err != nil {
		return err
	}
	j.log.Debug("move run recorded", "run_id", run.ID, "entries", len(run.Entries))
	return nil
}

func (j *Journal) insert(ctx context.Context, run Run) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, origin, dest, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Origin, run.Dest, toMillis(run.Started), toMillis(run.Finished),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	for i, e := range run.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (run_id, seq, origin, dest, status, error) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, i, e.Origin, e.Dest, e.Status, e.Error,
		); err != nil {
			return fmt.Errorf("insert entry %d of run %s: %w", i, run.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, origin, dest, started_at, finished_at FROM runs
		 ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Origin, &r.Dest, &started, &finished); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = fromMillis(started)
		r.Finished = fromMillis(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		entries, err := j.entries(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Entries = entries
	}
	return runs, nil
}

func (j *Journal) entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT origin, dest, status, error FROM entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entries of run %s: %w", runID, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Origin, &e.Dest, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
