// Package history journals pipeline runs and their attempts in SQLite so
// past prompts, render errors, and published videos can be listed later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scenegen/internal/pipeline"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one journaled pipeline run.
type Run struct {
	ID             string
	Prompt         string
	Scene          string
	MaxFixAttempts int
	State          string
	Attempts       int
	Fixes          int
	ArtifactPath   string
	PublishedPath  string
	ErrorCode      string
	ErrorMessage   string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// Attempt is one journaled generate/render cycle.
type Attempt struct {
	Number       int
	Outcome      string
	ScriptPath   string
	ExitCode     int
	Stderr       string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ pipeline.Recorder = (*Store)(nil)

// Open creates or connects to the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps PRAGMAs in effect for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// StartRun inserts a run row in the running state.
func (s *Store) StartRun(ctx context.Context, run pipeline.RunStart) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, prompt, scene, max_fix_attempts, state, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.Prompt,
		nullableString(run.Scene),
		run.MaxFixAttempts,
		pipeline.StateGenerating.String(),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordAttempt inserts an attempt row and bumps the run's counters.
func (s *Store) RecordAttempt(ctx context.Context, a pipeline.AttemptRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attempt tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO attempts (
            run_id, number, outcome, script_path, exit_code, stderr, error_message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID,
		a.Number,
		a.Outcome,
		nullableString(a.ScriptPath),
		a.ExitCode,
		nullableString(a.Stderr),
		nullableString(a.Error),
		formatTime(a.StartedAt),
		formatTime(a.FinishedAt),
	); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET attempts = MAX(attempts, ?), fixes = MAX(fixes, ?) WHERE id = ?`,
		a.Number, a.Number-1, a.RunID,
	); err != nil {
		return fmt.Errorf("update run counters: %w", err)
	}
	return tx.Commit()
}

// FinishRun stores the terminal state of a run.
func (s *Store) FinishRun(ctx context.Context, run pipeline.RunFinish) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs
         SET state = ?, attempts = ?, fixes = ?, artifact_path = ?, published_path = ?,
             error_code = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		run.State.String(),
		run.Attempts,
		run.Fixes,
		nullableString(run.ArtifactPath),
		nullableString(run.PublishedPath),
		nullableString(run.ErrorCode),
		nullableString(run.Error),
		formatTime(run.FinishedAt),
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", run.RunID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, prompt, scene, max_fix_attempts, state, attempts, fixes,
    artifact_path, published_path, error_code, error_message, started_at, finished_at`

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns a run and its attempts. id may be a unique prefix.
func (s *Store) Get(ctx context.Context, id string) (Run, []Attempt, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, nil, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		id, escapeLike(id)+"%",
	)
	if err != nil {
		return Run{}, nil, fmt.Errorf("get run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			rows.Close()
			return Run{}, nil, scanErr
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Run{}, nil, fmt.Errorf("get run: %w", err)
	}
	switch {
	case len(matches) == 0:
		return Run{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return Run{}, nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	run := matches[0]

	attempts, err := s.attempts(ctx, run.ID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, attempts, nil
}

func (s *Store) attempts(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, outcome, script_path, exit_code, stderr, error_message, started_at, finished_at
         FROM attempts WHERE run_id = ? ORDER BY number`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a                      Attempt
			script, stderr, errMsg sql.NullString
			startedAt, finishedAt  string
		)
		if err := rows.Scan(&a.Number, &a.Outcome, &script, &a.ExitCode, &stderr, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.ScriptPath, a.Stderr, a.ErrorMessage = script.String, stderr.String, errMsg.String
		a.StartedAt, _ = parseTime(startedAt)
		a.FinishedAt, _ = parseTime(finishedAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
