// --- START OF FINAL REVISED FILE internal/cli/hooks/hooks_test.go ---
package hooks

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stackvity/dicom-extractor/internal/testutil"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jsonLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func TestCLIHooks_OnFileDiscovered(t *testing.T) {
	const path = "/data/study/IM0001.dcm"

	t.Run("TUI Enabled", func(t *testing.T) {
		mockTUI := new(testutil.MockTUIProgram)
		mockTUI.On("Send", FileDiscoveredMsg{Path: path}).Once()
		logger, buf := jsonLogger()

		h := NewCLIHooks(logger, true, false, mockTUI, nil)
		require.NoError(t, h.OnFileDiscovered(path))
		mockTUI.AssertExpectations(t)
		assert.Empty(t, buf.String())
	})

	t.Run("Verbose Enabled", func(t *testing.T) {
		logger, buf := jsonLogger()
		h := NewCLIHooks(logger, false, true, nil, nil)
		require.NoError(t, h.OnFileDiscovered(path))
		assert.Contains(t, buf.String(), `"level":"DEBUG"`)
		assert.Contains(t, buf.String(), `"msg":"File discovered"`)
		assert.Contains(t, buf.String(), `"path":"`+path+`"`)
	})

	t.Run("Progress Bar", func(t *testing.T) {
		bar := new(testutil.MockProgressBar)
		bar.On("Describe", "Extracting 0/1").Once()
		logger, buf := jsonLogger()
		h := NewCLIHooks(logger, false, false, nil, bar)
		require.NoError(t, h.OnFileDiscovered(path))
		bar.AssertExpectations(t)
		assert.Empty(t, buf.String())
	})
}

func TestCLIHooks_OnFileStatusUpdate(t *testing.T) {
	const path = "/data/study/IM0002.dcm"

	t.Run("TUI Enabled", func(t *testing.T) {
		mockTUI := new(testutil.MockTUIProgram)
		mockTUI.On("Send", mock.MatchedBy(func(msg FileStatusUpdateMsg) bool {
			return msg.Path == path && msg.Status == extractor.StatusSuccess && msg.Duration == 40*time.Millisecond
		})).Once()
		logger, buf := jsonLogger()
		h := NewCLIHooks(logger, true, false, mockTUI, nil)
		require.NoError(t, h.OnFileStatusUpdate(path, extractor.StatusSuccess, "", 40*time.Millisecond))
		mockTUI.AssertExpectations(t)
		assert.Empty(t, buf.String())
	})

	t.Run("Verbose levels", func(t *testing.T) {
		tests := []struct {
			status    extractor.Status
			message   string
			wantLevel string
			wantMsg   string
		}{
			{extractor.StatusProcessing, "", `"level":"DEBUG"`, `"msg":"File status updated"`},
			{extractor.StatusSuccess, "", `"level":"INFO"`, `"msg":"File status updated"`},
			{extractor.StatusCached, "", `"level":"INFO"`, `"msg":"File status updated"`},
			{extractor.StatusFailed, "malformed: bad length", `"level":"ERROR"`, `"msg":"File extraction failed"`},
			{extractor.StatusUnreadable, "permission denied", `"level":"WARN"`, `"msg":"Directory skipped"`},
		}
		for _, tc := range tests {
			t.Run(string(tc.status), func(t *testing.T) {
				logger, buf := jsonLogger()
				h := NewCLIHooks(logger, false, true, nil, nil)
				require.NoError(t, h.OnFileStatusUpdate(path, tc.status, tc.message, 5*time.Millisecond))
				out := buf.String()
				assert.Contains(t, out, tc.wantLevel)
				assert.Contains(t, out, tc.wantMsg)
				assert.Contains(t, out, `"status":"`+string(tc.status)+`"`)
				if tc.message != "" {
					assert.Contains(t, out, tc.message)
				}
			})
		}
	})

	t.Run("Progress bar counts final states only", func(t *testing.T) {
		bar := new(testutil.MockProgressBar)
		bar.On("Add", 1).Return(nil).Twice()
		bar.On("Describe", mock.AnythingOfType("string")).Return()
		logger, buf := jsonLogger()
		h := NewCLIHooks(logger, false, false, nil, bar)

		require.NoError(t, h.OnFileStatusUpdate(path, extractor.StatusProcessing, "", 0))
		require.NoError(t, h.OnFileStatusUpdate(path, extractor.StatusSuccess, "", time.Millisecond))
		require.NoError(t, h.OnFileStatusUpdate("/data/bad.dcm", extractor.StatusFailed, "truncated", time.Millisecond))

		bar.AssertNumberOfCalls(t, "Add", 2)
		bar.AssertCalled(t, "Describe", "Extracting 2/0")
		assert.Contains(t, buf.String(), `"msg":"File extraction failed"`)
		assert.Contains(t, buf.String(), "/data/bad.dcm")
	})

	t.Run("Plain mode logs failures only", func(t *testing.T) {
		logger, buf := jsonLogger()
		h := NewCLIHooks(logger, false, false, nil, nil)
		require.NoError(t, h.OnFileStatusUpdate(path, extractor.StatusSuccess, "", time.Millisecond))
		assert.Empty(t, buf.String())
		require.NoError(t, h.OnFileStatusUpdate(path, extractor.StatusFailed, "unsupported", time.Millisecond))
		assert.Contains(t, buf.String(), `"level":"ERROR"`)
	})
}

func TestCLIHooks_OnRunComplete(t *testing.T) {
	report := extractor.Report{Summary: extractor.ReportSummary{SucceededCount: 3}}

	t.Run("TUI Enabled", func(t *testing.T) {
		mockTUI := new(testutil.MockTUIProgram)
		mockTUI.On("Send", RunCompleteMsg{Report: report}).Once()
		logger, _ := jsonLogger()
		h := NewCLIHooks(logger, true, false, mockTUI, nil)
		require.NoError(t, h.OnRunComplete(report))
		mockTUI.AssertExpectations(t)
	})

	t.Run("Progress bar closed", func(t *testing.T) {
		bar := new(testutil.MockProgressBar)
		bar.On("Close").Return(nil).Once()
		logger, _ := jsonLogger()
		h := NewCLIHooks(logger, false, false, nil, bar)
		require.NoError(t, h.OnRunComplete(report))
		bar.AssertExpectations(t)
	})
}

func TestCLIHooks_ConcurrentUpdates(t *testing.T) {
	bar := new(testutil.MockProgressBar)
	bar.On("Add", 1).Return(nil)
	bar.On("Describe", mock.AnythingOfType("string")).Return()
	logger, _ := jsonLogger()
	h := NewCLIHooks(logger, false, false, nil, bar)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.OnFileDiscovered("/data/x.dcm")
			_ = h.OnFileStatusUpdate("/data/x.dcm", extractor.StatusCached, "", time.Millisecond)
		}()
	}
	wg.Wait()
	bar.AssertNumberOfCalls(t, "Add", 50)
	bar.AssertCalled(t, "Describe", "Extracting 50/50")
}

func TestNewProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf)
	require.NoError(t, bar.Add(1))
	bar.Describe("Extracting 1/1")
	require.NoError(t, bar.Close())
}

// --- END OF FINAL REVISED FILE internal/cli/hooks/hooks_test.go ---
