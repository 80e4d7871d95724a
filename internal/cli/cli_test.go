// --- START OF FINAL REVISED FILE internal/cli/cli_test.go ---
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stackvity/dicom-extractor/internal/cli/history"
	"github.com/stackvity/dicom-extractor/internal/testutil"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

func writeStudy(t *testing.T, root string) {
	t.Helper()
	for i, mod := range []string{"MR", "CT"} {
		testutil.WriteDICOMFile(t, filepath.Join(root, "study", fmt.Sprintf("im%d.dcm", i)), testutil.DICOMOptions{},
			testutil.Text(0x0008, 0x0060, "CS", mod),
			testutil.Text(0x0010, 0x0010, "PN", fmt.Sprintf("Doe^%d", i)),
		)
	}
	testutil.WriteDICOMFile(t, filepath.Join(root, "study", "corrupt.dcm"), testutil.DICOMOptions{TruncateBy: 4},
		testutil.Text(0x0008, 0x0060, "CS", "MR"),
		testutil.Text(0x0010, 0x0010, "PN", "Broken^Header"),
	)
}

func testOptions(t *testing.T, root string) (extractor.Options, *slog.Logger) {
	t.Helper()
	handler, _ := testutil.BufferLogger()
	return extractor.Options{
		InputPath:        root,
		OutputPath:       filepath.Join(t.TempDir(), "dicom_data.csv"),
		Concurrency:      2,
		Extensions:       []string{".dcm"},
		DropEmptyColumns: true,
		OutputFormat:     extractor.OutputFormatText,
		Logger:           handler,
	}, slog.New(handler)
}

func TestRun_BuiltInExtractorWithArtifacts(t *testing.T) {
	root := t.TempDir()
	writeStudy(t, root)
	opts, logger := testOptions(t, root)
	artifacts := t.TempDir()
	opts.ReportFile = filepath.Join(artifacts, "report.yaml")
	opts.HistoryDBPath = filepath.Join(artifacts, "history.db")

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, logger, &stdout, false))

	out := stdout.String()
	assert.Contains(t, out, "DICOM extraction complete")
	assert.Contains(t, out, "(2 rows, 3 columns)")
	assert.Contains(t, out, "Failed:       1")
	assert.Contains(t, out, "[malformed] "+filepath.Join(root, "study", "corrupt.dcm"))

	data, err := os.ReadFile(opts.OutputPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], extractor.PathField+","))

	raw, err := os.ReadFile(opts.ReportFile)
	require.NoError(t, err)
	var report extractor.Report
	require.NoError(t, yaml.Unmarshal(raw, &report))
	assert.Equal(t, 3, report.Summary.DiscoveredCount)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, extractor.ErrorKindMalformed, report.Failures[0].Kind)

	store, err := history.Open(context.Background(), opts.HistoryDBPath, nil)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.Summary.RunID, runs[0].RunID)
	assert.Equal(t, 2, runs[0].Succeeded)
}

func TestRun_JSONSummary(t *testing.T) {
	root := t.TempDir()
	writeStudy(t, root)
	opts, logger := testOptions(t, root)
	opts.OutputFormat = extractor.OutputFormatJSON

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, logger, &stdout, false))

	var report extractor.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, 2, report.Summary.SucceededCount)
	assert.Equal(t, 1, report.Summary.FailedCount)
	assert.Equal(t, extractor.ReportSchemaVersion, report.Summary.SchemaVersion)
}

func TestRun_ExternalCommandExtractor(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	root := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(root, "a.dcm"), "x")
	testutil.CreateDummyFile(t, filepath.Join(root, "b.dcm"), "x")
	script := filepath.Join(t.TempDir(), "extract.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat > /dev/null\nprintf '%s' '{\"$schemaVersion\":\"1.0\",\"fields\":{\"Source\":\"script\"}}'\n"), 0o755))

	opts, logger := testOptions(t, root)
	opts.ExtractorCommand = []string{"/bin/sh", script}

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, logger, &stdout, false))

	data, err := os.ReadFile(opts.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), ",script\n"))
}

func TestRun_InvalidTagSelection(t *testing.T) {
	opts, logger := testOptions(t, t.TempDir())
	opts.Tags = []string{"(zzzz,0010)"}

	err := run(context.Background(), opts, logger, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrConfigValidation)
}

func TestRun_CancelledRunReturnsError(t *testing.T) {
	root := t.TempDir()
	writeStudy(t, root)
	opts, logger := testOptions(t, root)
	opts.HistoryDBPath = filepath.Join(t.TempDir(), "history.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts.Concurrency = 1
	opts.Extractor = extractor.FieldExtractorFunc(func(context.Context, string) (*extractor.Record, error) {
		cancel()
		return nil, extractor.NewExtractError(extractor.ErrorKindCancelled, "x", context.Canceled)
	})
	var stdout bytes.Buffer
	err := run(ctx, opts, logger, &stdout, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Contains(t, stdout.String(), "DICOM extraction cancelled")

	store, err := history.Open(context.Background(), opts.HistoryDBPath, nil)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Cancelled)
}

func TestRun_ReportFileFailure(t *testing.T) {
	root := t.TempDir()
	writeStudy(t, root)
	opts, logger := testOptions(t, root)
	opts.ReportFile = filepath.Join(t.TempDir(), "missing", "report.json")

	err := run(context.Background(), opts, logger, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report")
	assert.FileExists(t, opts.OutputPath, "the table is still written")
}

func TestWriteTextSummary(t *testing.T) {
	failures := make([]extractor.Failure, maxListedFailures+5)
	for i := range failures {
		failures[i] = extractor.Failure{Path: fmt.Sprintf("/a/%d.dcm", i), Kind: extractor.ErrorKindTimeout, Message: "timeout"}
	}
	report := extractor.Report{
		Summary: extractor.ReportSummary{
			RunID:              "r1",
			OutputPath:         "/out.csv",
			FatalErrorOccurred: true,
			FatalError:         "disk full",
			DiscoveryErrors:    1,
			DurationSeconds:    1.25,
		},
		Failures:          failures,
		DiscoveryFailures: []extractor.DiscoveryFailure{{Path: "/a/locked", Message: "permission denied"}},
	}

	var b bytes.Buffer
	require.NoError(t, writeTextSummary(&b, report))
	out := b.String()
	assert.Contains(t, out, "DICOM extraction FAILED")
	assert.Contains(t, out, "/out.csv (not written)")
	assert.Contains(t, out, "Error:        disk full")
	assert.Contains(t, out, "Skipped dirs: 1")
	assert.Contains(t, out, "Duration:     1.25s")
	assert.Contains(t, out, "... and 5 more")
	assert.NotContains(t, out, fmt.Sprintf("/a/%d.dcm", maxListedFailures))
	assert.Contains(t, out, "/a/locked: permission denied")
}

// --- END OF FINAL REVISED FILE internal/cli/cli_test.go ---
