// --- START OF FINAL REVISED FILE internal/cli/history/history_test.go ---
package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stackvity/dicom-extractor/internal/testutil"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	handler, _ := testutil.BufferLogger()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"), handler)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(runID string, ts time.Time, failures ...extractor.Failure) extractor.Report {
	return extractor.Report{
		Summary: extractor.ReportSummary{
			RunID:           runID,
			InputPath:       "/archive",
			OutputPath:      "/out/dicom_data.csv",
			ProfileUsed:     "nightly",
			DiscoveredCount: 10,
			SucceededCount:  10 - len(failures),
			FailedCount:     len(failures),
			CachedCount:     2,
			RowsWritten:     10 - len(failures),
			ColumnCount:     42,
			DurationSeconds: 1.5,
			Timestamp:       ts,
		},
		Failures: failures,
	}
}

func TestStore_RecordAndQuery(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	bad := extractor.Failure{Path: "/archive/a/bad.dcm", Kind: extractor.ErrorKindMalformed, Message: "malformed: truncated"}
	odd := extractor.Failure{Path: "/archive/b/odd.dcm", Kind: extractor.ErrorKindUnsupported, Message: "unsupported: no magic"}

	require.NoError(t, s.Record(ctx, sampleReport("run-1", base, bad, odd)))
	second := sampleReport("run-2", base.Add(time.Hour), bad)
	second.Summary.Cancelled = true
	require.NoError(t, s.Record(ctx, second))

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID, "newest first")
	assert.True(t, runs[0].Cancelled)
	assert.True(t, base.Add(time.Hour).Equal(runs[0].StartedAt))
	assert.Equal(t, "nightly", runs[1].Profile)
	assert.Equal(t, 8, runs[1].Succeeded)
	assert.Equal(t, 2, runs[1].Failed)
	assert.Equal(t, 42, runs[1].ColumnCount)
	assert.Empty(t, runs[1].FatalError)

	limited, err := s.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	failures, err := s.Failures(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []extractor.Failure{bad, odd}, failures)

	repeat, err := s.FailingPaths(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"/archive/a/bad.dcm": 2}, repeat)
}

func TestStore_FatalRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	r := sampleReport("run-fatal", time.Now())
	r.Summary.FatalErrorOccurred = true
	r.Summary.FatalError = "append batch of 3 rows: disk full"
	require.NoError(t, s.Record(ctx, r))

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "append batch of 3 rows: disk full", runs[0].FatalError)
}

func TestStore_DuplicateRunIsRejected(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	f := extractor.Failure{Path: "/x.dcm", Kind: extractor.ErrorKindIO, Message: "io"}
	require.NoError(t, s.Record(ctx, sampleReport("same", time.Now(), f)))

	err := s.Record(ctx, sampleReport("same", time.Now(), f))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHistory)

	failures, err := s.Failures(ctx, "same")
	require.NoError(t, err)
	assert.Len(t, failures, 1, "failed transaction left nothing behind")
}

func TestStore_RequiresRunID(t *testing.T) {
	s := openStore(t)
	err := s.Record(context.Background(), extractor.Report{})
	assert.ErrorIs(t, err, ErrHistory)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, sampleReport("persisted", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())
	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "persisted", runs[0].RunID)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "h.db"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHistory)
}

// --- END OF FINAL REVISED FILE internal/cli/history/history_test.go ---
