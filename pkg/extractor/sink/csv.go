// --- START OF FINAL REVISED FILE pkg/extractor/sink/csv.go ---
package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

const (
	lockSuffix = ".lock"
	// lockRetryDelay is the polling interval while waiting for the lock.
	lockRetryDelay = 100 * time.Millisecond
)

// Options configures a CSV sink.
type Options struct {
	// DropEmptyColumns removes columns that are null in every row.
	DropEmptyColumns bool
	// Logger receives sink diagnostics. Nil discards them.
	Logger slog.Handler
}

type state int

const (
	stateOpen state = iota
	stateFinalized
	stateAborted
)

// stagedRow is one record as written to the staging file.
type stagedRow struct {
	K []string  `json:"k"`
	V []*string `json:"v"`
}

// CSVSink writes records to a CSV table whose header is the union of all
// keys seen. Rows are staged next to the output as JSON lines; Finalize
// writes the table once the full column set is known and renames it into
// place, so readers never see a partial file.
type CSVSink struct {
	mu     sync.Mutex
	logger *slog.Logger
	opts   Options

	path        string
	lock        *flock.Flock
	stagingPath string
	staging     *os.File
	stagingBuf  *bufio.Writer
	enc         *json.Encoder

	columns  []string
	colIndex map[string]int
	nonNull  []bool
	rows     int

	state  state
	result extractor.SinkResult
}

// NewOpener returns an extractor.SinkOpener producing CSV sinks.
func NewOpener(opts Options) extractor.SinkOpener {
	return func(ctx context.Context, path string) (extractor.Sink, error) {
		return Open(ctx, path, opts)
	}
}

// Open takes the cooperative lock on path and creates the staging file.
// While another writer holds the lock Open waits; it fails with
// extractor.ErrOutputLocked only when ctx ends first.
func Open(ctx context.Context, path string, opts Options) (*CSVSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handler := opts.Logger
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(handler).With(slog.String("component", "csvSink"), slog.String("path", path))

	lock, err := acquireLock(ctx, path, logger)
	if err != nil {
		return nil, err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	stagingPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.staging", base, uuid.NewString()))
	f, err := os.OpenFile(stagingPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		releaseLock(lock, logger)
		return nil, fmt.Errorf("%w: create staging file in '%s': %w", extractor.ErrSinkIO, dir, err)
	}
	buf := bufio.NewWriterSize(f, 256*1024)
	logger.Debug("CSV sink opened", slog.String("staging", stagingPath))
	return &CSVSink{
		logger:      logger,
		opts:        opts,
		path:        path,
		lock:        lock,
		stagingPath: stagingPath,
		staging:     f,
		stagingBuf:  buf,
		enc:         json.NewEncoder(buf),
		colIndex:    make(map[string]int),
	}, nil
}

// Append stages a batch. Keys not seen before extend the column set in
// first-seen order. The batch is flushed to the staging file before return.
func (s *CSVSink) Append(ctx context.Context, batch extractor.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return extractor.ErrSinkFinalized
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: append interrupted: %w", extractor.ErrSinkIO, err)
	}
	for _, rec := range batch {
		if rec == nil {
			continue
		}
		row := stagedRow{K: make([]string, 0, rec.Len()), V: make([]*string, 0, rec.Len())}
		rec.Range(func(key string, value any) bool {
			idx, seen := s.colIndex[key]
			if !seen {
				idx = len(s.columns)
				s.colIndex[key] = idx
				s.columns = append(s.columns, key)
				s.nonNull = append(s.nonNull, false)
			}
			row.K = append(row.K, key)
			if cell, ok := extractor.FormatValue(value); ok {
				s.nonNull[idx] = true
				row.V = append(row.V, &cell)
			} else {
				row.V = append(row.V, nil)
			}
			return true
		})
		if err := s.enc.Encode(row); err != nil {
			return fmt.Errorf("%w: write staging row: %w", extractor.ErrSinkIO, err)
		}
		s.rows++
	}
	if err := s.stagingBuf.Flush(); err != nil {
		return fmt.Errorf("%w: flush staging file: %w", extractor.ErrSinkIO, err)
	}
	return nil
}

// Finalize writes the table and releases the lock. Calling it again returns
// the first result; calling it after Abort fails.
func (s *CSVSink) Finalize(ctx context.Context) (extractor.SinkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateFinalized:
		return s.result, nil
	case stateAborted:
		return extractor.SinkResult{}, extractor.ErrSinkFinalized
	}

	columns := s.outputColumns()
	if err := s.writeTable(ctx, columns); err != nil {
		s.cleanup()
		s.state = stateAborted
		return extractor.SinkResult{}, err
	}
	s.cleanup()
	s.state = stateFinalized
	s.result = extractor.SinkResult{Path: s.path, Rows: s.rows, Columns: columns}
	s.logger.Info("Output table written", slog.Int("rows", s.rows), slog.Int("columns", len(columns)))
	return s.result, nil
}

// Abort discards staged rows and releases the lock. The output path is left
// untouched. Abort is idempotent and a no-op after Finalize.
func (s *CSVSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return nil
	}
	s.cleanup()
	s.state = stateAborted
	s.logger.Info("Output aborted, partial rows discarded", slog.Int("stagedRows", s.rows))
	return nil
}

// outputColumns puts the path column first, then the rest in first-seen
// order, optionally dropping all-null columns.
func (s *CSVSink) outputColumns() []string {
	cols := []string{extractor.PathField}
	for i, c := range s.columns {
		if c == extractor.PathField {
			continue
		}
		if s.opts.DropEmptyColumns && !s.nonNull[i] {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

func (s *CSVSink) writeTable(ctx context.Context, columns []string) error {
	if err := s.stagingBuf.Flush(); err != nil {
		return fmt.Errorf("%w: flush staging file: %w", extractor.ErrSinkIO, err)
	}
	if _, err := s.staging.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewind staging file: %w", extractor.ErrSinkIO, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temporary output in '%s': %w", extractor.ErrSinkIO, dir, err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	out := bufio.NewWriterSize(tmp, 256*1024)
	w := csv.NewWriter(out)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("%w: write header: %w", extractor.ErrSinkIO, err)
	}

	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	cells := make([]string, len(columns))
	dec := json.NewDecoder(bufio.NewReaderSize(s.staging, 256*1024))
	for n := 0; ; n++ {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: finalize interrupted: %w", extractor.ErrSinkIO, err)
			}
		}
		var row stagedRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: read staging row %d: %w", extractor.ErrSinkIO, n, err)
		}
		for i := range cells {
			cells[i] = ""
		}
		for i, k := range row.K {
			if j, ok := pos[k]; ok && i < len(row.V) && row.V[i] != nil {
				cells[j] = *row.V[i]
			}
		}
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("%w: write row %d: %w", extractor.ErrSinkIO, n, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: write table: %w", extractor.ErrSinkIO, err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("%w: flush table: %w", extractor.ErrSinkIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync table: %w", extractor.ErrSinkIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close table: %w", extractor.ErrSinkIO, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: rename '%s' to '%s': %w", extractor.ErrSinkIO, tmpPath, s.path, err)
	}
	renamed = true
	return nil
}

// cleanup removes the staging file and releases the lock.
func (s *CSVSink) cleanup() {
	if s.staging != nil {
		_ = s.staging.Close()
		s.staging = nil
	}
	if err := os.Remove(s.stagingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove staging file", slog.String("staging", s.stagingPath), slog.String("error", err.Error()))
	}
	releaseLock(s.lock, s.logger)
}

// acquireLock locks <path>.lock, polling every lockRetryDelay while another
// writer holds it.
func acquireLock(ctx context.Context, path string, logger *slog.Logger) (*flock.Flock, error) {
	lock := flock.New(path + lockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire lock for '%s': %w", extractor.ErrSinkIO, path, err)
	}
	if locked {
		return lock, nil
	}

	logger.Info("Output is locked by another writer, waiting", slog.String("lock", lock.Path()))
	start := time.Now()
	locked, err = lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: acquire lock for '%s': %w", extractor.ErrSinkIO, path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: '%s': gave up after %s: %w", extractor.ErrOutputLocked, path, time.Since(start).Round(time.Millisecond), ctx.Err())
	}
	logger.Debug("Output lock acquired", slog.Duration("waited", time.Since(start)))
	return lock, nil
}

// releaseLock unlocks but keeps the lock file. Removing it would let a
// waiter holding the old inode and a newcomer creating a new file both
// believe they own the lock.
func releaseLock(lock *flock.Flock, logger *slog.Logger) {
	if err := lock.Unlock(); err != nil {
		logger.Warn("Failed to release output lock", slog.String("error", err.Error()))
	}
}

// --- END OF FINAL REVISED FILE pkg/extractor/sink/csv.go ---
