// --- START OF FINAL REVISED FILE internal/cli/history/history.go ---
// Package history appends run summaries and their failures to a SQLite
// database so repeated runs over the same archive can be compared.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

// ErrHistory wraps every failure of the history store.
var ErrHistory = errors.New("run history database error")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id            TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	input_path        TEXT NOT NULL,
	output_path       TEXT NOT NULL,
	profile           TEXT NOT NULL DEFAULT '',
	discovered        INTEGER NOT NULL,
	succeeded         INTEGER NOT NULL,
	failed            INTEGER NOT NULL,
	cached            INTEGER NOT NULL,
	discovery_errors  INTEGER NOT NULL,
	rows_written      INTEGER NOT NULL,
	column_count      INTEGER NOT NULL,
	cancelled         INTEGER NOT NULL,
	fatal_error       TEXT,
	duration_seconds  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS failures (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	path    TEXT NOT NULL,
	kind    TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
CREATE INDEX IF NOT EXISTS idx_failures_path ON failures(path);
`

// Run is one row of the runs table.
type Run struct {
	RunID           string
	StartedAt       time.Time
	InputPath       string
	OutputPath      string
	Profile         string
	Discovered      int
	Succeeded       int
	Failed          int
	Cached          int
	DiscoveryErrors int
	RowsWritten     int
	ColumnCount     int
	Cancelled       bool
	FatalError      string
	DurationSeconds float64
}

// Store is an open history database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the database at path and ensures the schema.
func Open(ctx context.Context, path string, loggerHandler slog.Handler) (*Store, error) {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open '%s': %w", ErrHistory, path, err)
	}
	// One writer per process; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrHistory, pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema in '%s': %w", ErrHistory, path, err)
	}
	return &Store{
		db:     db,
		path:   path,
		logger: slog.New(loggerHandler).With(slog.String("component", "history")),
	}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores the report's summary and failures in one transaction.
func (s *Store) Record(ctx context.Context, report extractor.Report) (err error) {
	sum := report.Summary
	if sum.RunID == "" {
		return fmt.Errorf("%w: report has no run ID", ErrHistory)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrHistory, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var fatal sql.NullString
	if sum.FatalErrorOccurred {
		fatal = sql.NullString{String: sum.FatalError, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, input_path, output_path, profile,
			discovered, succeeded, failed, cached, discovery_errors,
			rows_written, column_count, cancelled, fatal_error, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.Timestamp.UTC().Format(time.RFC3339Nano), sum.InputPath, sum.OutputPath, sum.ProfileUsed,
		sum.DiscoveredCount, sum.SucceededCount, sum.FailedCount, sum.CachedCount, sum.DiscoveryErrors,
		sum.RowsWritten, sum.ColumnCount, sum.Cancelled, fatal, sum.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("%w: insert run %s: %w", ErrHistory, sum.RunID, err)
	}

	if len(report.Failures) > 0 {
		stmt, prepErr := tx.PrepareContext(ctx, `INSERT INTO failures (run_id, path, kind, message) VALUES (?, ?, ?, ?)`)
		if prepErr != nil {
			err = fmt.Errorf("%w: prepare failure insert: %w", ErrHistory, prepErr)
			return err
		}
		defer stmt.Close()
		for _, f := range report.Failures {
			if _, err = stmt.ExecContext(ctx, sum.RunID, f.Path, string(f.Kind), f.Message); err != nil {
				return fmt.Errorf("%w: insert failure for '%s': %w", ErrHistory, f.Path, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrHistory, err)
	}
	s.logger.Debug("Run recorded", slog.String("runID", sum.RunID), slog.Int("failures", len(report.Failures)))
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, input_path, output_path, profile,
			discovered, succeeded, failed, cached, discovery_errors,
			rows_written, column_count, cancelled, fatal_error, duration_seconds
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query runs: %w", ErrHistory, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			startedAt string
			fatal     sql.NullString
		)
		if err := rows.Scan(&r.RunID, &startedAt, &r.InputPath, &r.OutputPath, &r.Profile,
			&r.Discovered, &r.Succeeded, &r.Failed, &r.Cached, &r.DiscoveryErrors,
			&r.RowsWritten, &r.ColumnCount, &r.Cancelled, &fatal, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("%w: scan run: %w", ErrHistory, err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, startedAt); perr == nil {
			r.StartedAt = t
		}
		r.FatalError = fatal.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate runs: %w", ErrHistory, err)
	}
	return runs, nil
}

// Failures returns the failures recorded for runID in insertion order.
func (s *Store) Failures(ctx context.Context, runID string) ([]extractor.Failure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, kind, message FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: query failures: %w", ErrHistory, err)
	}
	defer rows.Close()

	var out []extractor.Failure
	for rows.Next() {
		var (
			f    extractor.Failure
			kind string
		)
		if err := rows.Scan(&f.Path, &kind, &f.Message); err != nil {
			return nil, fmt.Errorf("%w: scan failure: %w", ErrHistory, err)
		}
		f.Kind = extractor.ErrorKind(kind)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate failures: %w", ErrHistory, err)
	}
	return out, nil
}

// FailingPaths returns paths that failed in at least minRuns recorded runs,
// most frequent first. Useful for spotting files that never parse.
func (s *Store) FailingPaths(ctx context.Context, minRuns int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, COUNT(DISTINCT run_id) AS n FROM failures
		GROUP BY path HAVING n >= ? ORDER BY n DESC`, minRuns)
	if err != nil {
		return nil, fmt.Errorf("%w: query failing paths: %w", ErrHistory, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			path string
			n    int
		)
		if err := rows.Scan(&path, &n); err != nil {
			return nil, fmt.Errorf("%w: scan failing path: %w", ErrHistory, err)
		}
		out[path] = n
	}
	return out, rows.Err()
}

// --- END OF FINAL REVISED FILE internal/cli/history/history.go ---
