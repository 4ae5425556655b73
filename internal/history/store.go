// Package history keeps a ledger of build runs in a local SQLite database
// under the cache directory.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one recorded build.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Profile    string
	Sites      int
	Created    int
	Updated    int
	Unchanged  int
	Revision   string
	Status     string
	Error      string
}

// Store is the run ledger.
type Store struct {
	db *sql.DB
}

// Open opens the ledger database, creating it and its schema on first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		profile TEXT NOT NULL,
		sites INTEGER NOT NULL,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		unchanged INTEGER NOT NULL,
		revision TEXT,
		status TEXT NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewRunID allocates the identifier for a build run.
func NewRunID() string {
	return uuid.NewString()
}

// Record appends a finished run to the ledger.
func (s *Store) Record(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, profile, sites, created, updated, unchanged, revision, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Unix(), run.FinishedAt.Unix(), run.Profile, run.Sites,
		run.Created, run.Updated, run.Unchanged, run.Revision, run.Status, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, profile, sites, created, updated, unchanged, revision, status, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished int64
		err := rows.Scan(&run.ID, &started, &finished, &run.Profile, &run.Sites,
			&run.Created, &run.Updated, &run.Unchanged, &run.Revision, &run.Status, &run.Error)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0)
		run.FinishedAt = time.Unix(finished, 0)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Close closes the ledger.
func (s *Store) Close() error {
	return s.db.Close()
}

// SourceRevision reports the HEAD commit of the repository containing dir,
// or an empty string when dir is not inside a git work tree.
func SourceRevision(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}
