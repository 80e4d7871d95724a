// --- START OF FINAL REVISED FILE internal/cli/hooks/hooks.go ---
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"

	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

// --- TUI Message Structs ---

// FileDiscoveredMsg signals that the walker queued a candidate file.
type FileDiscoveredMsg struct{ Path string }

// FileStatusUpdateMsg signals a change in a file's processing status.
type FileStatusUpdateMsg struct {
	Path     string
	Status   extractor.Status
	Message  string
	Duration time.Duration
}

// RunCompleteMsg carries the final report to the TUI.
type RunCompleteMsg struct{ Report extractor.Report }

// TUIProgram is the subset of *tea.Program the hooks need.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// ProgressBar is the subset of *progressbar.ProgressBar the hooks need.
type ProgressBar interface {
	Add(num int) error
	Describe(description string)
	Close() error
}

type noOpTUIProgram struct{}

func (noOpTUIProgram) Send(tea.Msg) {}

// NewProgressBar returns an indeterminate bar on w. The total is unknown
// while discovery runs, so the description carries "done/discovered".
func NewProgressBar(w io.Writer) ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// CLIHooks implements extractor.Hooks and routes events to the TUI, the
// progress bar, or the logger, in that order of preference.
type CLIHooks struct {
	logger         *slog.Logger
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram
	progressBar    ProgressBar // nil when no bar is shown

	mu         sync.Mutex
	discovered int
	finished   int
}

// NewCLIHooks creates the hooks. Pass nil for tuiProg or progBar when not
// applicable.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram, progBar ProgressBar) *CLIHooks {
	if tuiProg == nil {
		tuiProg = noOpTUIProgram{}
	}
	return &CLIHooks{
		logger:         logger,
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
		progressBar:    progBar,
	}
}

// OnFileDiscovered implements extractor.Hooks.
func (h *CLIHooks) OnFileDiscovered(path string) error {
	switch {
	case h.tuiEnabled:
		h.tuiProgram.Send(FileDiscoveredMsg{Path: path})
	case h.verboseEnabled:
		h.logger.Debug("File discovered", slog.String("path", path))
	case h.progressBar != nil:
		h.mu.Lock()
		h.discovered++
		h.describeLocked()
		h.mu.Unlock()
	}
	return nil
}

// OnFileStatusUpdate implements extractor.Hooks. It is called concurrently
// by the walker and every worker.
func (h *CLIHooks) OnFileStatusUpdate(path string, status extractor.Status, message string, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileStatusUpdateMsg{Path: path, Status: status, Message: message, Duration: duration})
		return nil
	}

	if h.verboseEnabled {
		level := slog.LevelDebug
		msg := "File status updated"
		attrs := []slog.Attr{slog.String("path", path), slog.String("status", string(status))}
		if duration > 0 {
			attrs = append(attrs, slog.Duration("duration", duration))
		}
		switch status {
		case extractor.StatusSuccess, extractor.StatusCached:
			level = slog.LevelInfo
		case extractor.StatusFailed:
			level, msg = slog.LevelError, "File extraction failed"
		case extractor.StatusUnreadable:
			level, msg = slog.LevelWarn, "Directory skipped"
		}
		if message != "" {
			attrs = append(attrs, slog.String("error", message))
		}
		h.logger.LogAttrs(context.Background(), level, msg, attrs...)
		return nil
	}

	// Failures are always logged outside the TUI; the summary lists them too.
	switch status {
	case extractor.StatusFailed:
		h.logger.Error("File extraction failed", slog.String("path", path), slog.String("error", message))
	case extractor.StatusUnreadable:
		h.logger.Warn("Directory skipped", slog.String("path", path), slog.String("error", message))
		return nil
	}

	if h.progressBar != nil && isFinalStatus(status) {
		h.mu.Lock()
		h.finished++
		_ = h.progressBar.Add(1)
		h.describeLocked()
		h.mu.Unlock()
	}
	return nil
}

// OnRunComplete implements extractor.Hooks.
func (h *CLIHooks) OnRunComplete(report extractor.Report) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Report: report})
		return nil
	}
	if h.progressBar != nil {
		h.mu.Lock()
		_ = h.progressBar.Close()
		h.mu.Unlock()
	}
	return nil
}

// describeLocked must be called with h.mu held.
func (h *CLIHooks) describeLocked() {
	h.progressBar.Describe(fmt.Sprintf("Extracting %d/%d", h.finished, h.discovered))
}

func isFinalStatus(s extractor.Status) bool {
	return s == extractor.StatusSuccess || s == extractor.StatusFailed || s == extractor.StatusCached
}

// --- END OF FINAL REVISED FILE internal/cli/hooks/hooks.go ---
