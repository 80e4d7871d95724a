// --- START OF FINAL REVISED FILE internal/cli/cli.go ---
// Package cli wires the concrete extractor, sink and presentation layer around
// the extraction engine and publishes the run's results.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/stackvity/dicom-extractor/internal/cli/history"
	"github.com/stackvity/dicom-extractor/internal/cli/hooks"
	"github.com/stackvity/dicom-extractor/internal/cli/runner"
	"github.com/stackvity/dicom-extractor/internal/cli/ui"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
	"github.com/stackvity/dicom-extractor/pkg/extractor/dicom"
	"github.com/stackvity/dicom-extractor/pkg/extractor/sink"
)

// maxListedFailures bounds the failures printed in the text summary. The
// report file always carries all of them.
const maxListedFailures = 20

// Run executes one extraction with validated options. It returns nil when the
// run completed, even with per-file failures, and an error when the run was
// cancelled, hit a fatal error or could not write a requested artifact.
func Run(ctx context.Context, opts extractor.Options, logger *slog.Logger) error {
	return run(ctx, opts, logger, os.Stdout, term.IsTerminal(int(os.Stderr.Fd())))
}

func run(ctx context.Context, opts extractor.Options, logger *slog.Logger, stdout io.Writer, interactive bool) error {
	fe, err := newFieldExtractor(opts)
	if err != nil {
		logger.Error("Cannot create field extractor", slog.String("error", err.Error()))
		return err
	}
	opts.Extractor = fe
	if opts.SinkOpener == nil {
		opts.SinkOpener = sink.NewOpener(sink.Options{DropEmptyColumns: opts.DropEmptyColumns, Logger: opts.Logger})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		tui     *tea.Program
		tuiDone chan error
	)
	if opts.EventHooks == nil {
		switch {
		case interactive && opts.TuiEnabled:
			model := ui.NewModel(opts.AppVersion, cancel)
			tui = tea.NewProgram(&model, tea.WithOutput(os.Stderr))
			tuiDone = make(chan error, 1)
			go func() {
				_, err := tui.Run()
				tuiDone <- err
			}()
			opts.EventHooks = hooks.NewCLIHooks(logger, true, opts.Verbose, tui, nil)
		case interactive:
			opts.EventHooks = hooks.NewCLIHooks(logger, false, opts.Verbose, nil, hooks.NewProgressBar(os.Stderr))
		default:
			opts.EventHooks = hooks.NewCLIHooks(logger, false, opts.Verbose, nil, nil)
		}
	}

	engine, err := extractor.NewEngine(runCtx, opts)
	if err != nil {
		if tui != nil {
			tui.Quit()
			<-tuiDone
		}
		return err
	}
	logger.Debug("Starting extraction run", slog.String("runID", engine.RunID()), slog.String("root", opts.InputPath))

	report, runErr := engine.Run()

	// OnRunComplete has been delivered by now, so the model is quitting.
	if tui != nil {
		if err := <-tuiDone; err != nil {
			logger.Warn("Terminal UI exited with an error", slog.String("error", err.Error()))
		}
	}

	if err := printSummary(stdout, report, opts.OutputFormat); err != nil {
		logger.Warn("Failed to print run summary", slog.String("error", err.Error()))
	}

	errs := []error{runErr}
	if opts.ReportFile != "" {
		if err := report.WriteFile(opts.ReportFile); err != nil {
			logger.Error("Failed to write report file", slog.String("path", opts.ReportFile), slog.String("error", err.Error()))
			errs = append(errs, err)
		} else {
			logger.Info("Report written", slog.String("path", opts.ReportFile))
		}
	}
	if opts.HistoryDBPath != "" {
		// Cancelled runs are recorded too.
		if err := recordHistory(context.WithoutCancel(ctx), opts, report); err != nil {
			logger.Error("Failed to record run history", slog.String("path", opts.HistoryDBPath), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newFieldExtractor selects the external command when one is configured and
// the built-in DICOM parser otherwise. An injected Extractor wins.
func newFieldExtractor(opts extractor.Options) (extractor.FieldExtractor, error) {
	if opts.Extractor != nil {
		return opts.Extractor, nil
	}
	if len(opts.ExtractorCommand) > 0 {
		ce, err := runner.NewCommandExtractor(opts.ExtractorCommand, opts.Logger)
		if err != nil {
			return nil, err
		}
		return ce, nil
	}
	de, err := dicom.New(dicom.Options{Tags: opts.Tags, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return de, nil
}

func recordHistory(ctx context.Context, opts extractor.Options, report extractor.Report) error {
	store, err := history.Open(ctx, opts.HistoryDBPath, opts.Logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, report)
}

func printSummary(w io.Writer, report extractor.Report, format extractor.OutputFormat) error {
	if format == extractor.OutputFormatJSON {
		return report.Encode(w, extractor.ReportFormatJSON)
	}
	return writeTextSummary(w, report)
}

func writeTextSummary(w io.Writer, report extractor.Report) error {
	s := report.Summary
	var b strings.Builder

	status := "complete"
	switch {
	case s.FatalErrorOccurred:
		status = "FAILED"
	case s.Cancelled:
		status = "cancelled"
	}
	fmt.Fprintf(&b, "DICOM extraction %s\n", status)
	fmt.Fprintf(&b, "  Run ID:       %s\n", s.RunID)
	fmt.Fprintf(&b, "  Root:         %s\n", s.InputPath)
	if s.FatalErrorOccurred {
		fmt.Fprintf(&b, "  Output:       %s (not written)\n", s.OutputPath)
		fmt.Fprintf(&b, "  Error:        %s\n", s.FatalError)
	} else {
		fmt.Fprintf(&b, "  Output:       %s (%d rows, %d columns)\n", s.OutputPath, s.RowsWritten, s.ColumnCount)
	}
	fmt.Fprintf(&b, "  Discovered:   %d\n", s.DiscoveredCount)
	fmt.Fprintf(&b, "  Succeeded:    %d (%d from cache)\n", s.SucceededCount, s.CachedCount)
	fmt.Fprintf(&b, "  Failed:       %d\n", s.FailedCount)
	if s.DiscoveryErrors > 0 {
		fmt.Fprintf(&b, "  Skipped dirs: %d\n", s.DiscoveryErrors)
	}
	fmt.Fprintf(&b, "  Duration:     %s\n", time.Duration(s.DurationSeconds*float64(time.Second)).Round(time.Millisecond))

	if len(report.Failures) > 0 {
		b.WriteString("Failures:\n")
		for i, f := range report.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "  ... and %d more\n", len(report.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "  [%s] %s: %s\n", f.Kind, f.Path, f.Message)
		}
	}
	if len(report.DiscoveryFailures) > 0 {
		b.WriteString("Skipped directories:\n")
		for i, f := range report.DiscoveryFailures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "  ... and %d more\n", len(report.DiscoveryFailures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "  %s: %s\n", f.Path, f.Message)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// --- END OF FINAL REVISED FILE internal/cli/cli.go ---
