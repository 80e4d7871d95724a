// --- START OF FINAL REVISED FILE pkg/extractor/extractor.go ---
package extractor

import (
	"context"
	"log/slog"
)

// Run is the library entry point: it validates opts, walks opts.InputPath,
// extracts every candidate file with opts.Extractor and writes one row per
// successful file through opts.SinkOpener.
//
// A non-nil error means the run as a whole failed (invalid options, sink
// failure, unreadable root) or was cancelled. Per-file failures are listed in
// Report.Failures and do not produce an error.
func Run(ctx context.Context, opts Options) (Report, error) {
	engine, err := NewEngine(ctx, opts)
	if err != nil {
		return Report{}, err
	}
	slog.New(opts.Logger).Debug("Engine initialized", slog.String("runID", engine.RunID()))
	return engine.Run()
}

// --- END OF FINAL REVISED FILE pkg/extractor/extractor.go ---
