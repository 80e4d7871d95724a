// --- START OF FINAL REVISED FILE pkg/extractor/options.go ---
package extractor

import (
	"context"
	"log/slog"
	"time"

	"github.com/stackvity/dicom-extractor/pkg/extractor/cache"
)

// FieldExtractor turns one candidate file into a Record.
//
// Implementations must be safe for concurrent use and should honour ctx.
// Failures are returned as *ExtractError (or any error wrapping one of the
// kind sentinels) so the worker can classify them.
type FieldExtractor interface {
	Extract(ctx context.Context, path string) (*Record, error)
}

// Fingerprinter is implemented by extractors whose output depends on their
// configuration. The fingerprint is stored with cache entries; a change
// invalidates them.
type Fingerprinter interface {
	Fingerprint() string
}

// FieldExtractorFunc adapts a function to FieldExtractor.
type FieldExtractorFunc func(ctx context.Context, path string) (*Record, error)

// Extract implements FieldExtractor.
func (f FieldExtractorFunc) Extract(ctx context.Context, path string) (*Record, error) {
	return f(ctx, path)
}

// Sink is an open output handle. Append is only ever called by the single
// aggregator goroutine. Finalize is idempotent; Abort discards everything
// written so far.
type Sink interface {
	Append(ctx context.Context, batch Batch) error
	Finalize(ctx context.Context) (SinkResult, error)
	Abort() error
}

// SinkResult describes the finalized output.
type SinkResult struct {
	Path    string
	Rows    int
	Columns []string
}

// SinkOpener opens a Sink at path. It fails with an error wrapping ErrSinkIO
// (or ErrOutputLocked) when the output cannot be created.
type SinkOpener func(ctx context.Context, path string) (Sink, error)

// PathDiscoverer emits candidate paths and closes its channel when done.
type PathDiscoverer interface {
	StartWalk(ctx context.Context) error
}

// WalkerFactory creates the discoverer for a run. Tests substitute their own.
type WalkerFactory func(
	opts *Options,
	pathChan chan<- string,
	progress *Progress,
	loggerHandler slog.Handler,
) (PathDiscoverer, error)

// CacheManager is the cache contract used by workers.
type CacheManager = cache.CacheManager

// Hooks receives run events. Implementations MUST be thread-safe: discovery
// and status callbacks arrive from many goroutines.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks ignores every event.
type NoOpHooks struct{}

func (h *NoOpHooks) OnFileDiscovered(path string) error { return nil }

func (h *NoOpHooks) OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error {
	return nil
}

func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// Options holds all configuration for one extraction run.
type Options struct {
	// --- Core Paths ---
	InputPath  string `mapstructure:"-"`      // Required: root directory (positional argument)
	OutputPath string `mapstructure:"output"` // Output table path

	AppVersion     string `mapstructure:"-"`
	ConfigFilePath string `mapstructure:"-"` // For reporting
	ProfileName    string `mapstructure:"-"` // For reporting

	Verbose    bool `mapstructure:"verbose"`
	TuiEnabled bool `mapstructure:"tuiEnabled"`

	// --- Pipeline sizing ---
	Concurrency          int           `mapstructure:"concurrency"`          // Workers (0 = NumCPU)
	DiscoveryConcurrency int           `mapstructure:"discoveryConcurrency"` // Parallel directory listings
	QueueSize            int           `mapstructure:"queueSize"`            // Path queue capacity (0 = 2*Concurrency)
	BatchSize            int           `mapstructure:"batchSize"`
	FileTimeoutString    string        `mapstructure:"fileTimeout"`
	FileTimeout          time.Duration `mapstructure:"-"` // Derived from FileTimeoutString

	// --- Discovery ---
	Extensions     []string `mapstructure:"extensions"`
	DetectByMagic  bool     `mapstructure:"detectByMagic"`
	SkipHidden     bool     `mapstructure:"skipHidden"`
	IgnorePatterns []string `mapstructure:"ignore"` // Aggregated with .dicomextractorignore

	// --- Extraction & output ---
	Tags             []string     `mapstructure:"tags"`             // Field selection for the built-in extractor
	ExtractorCommand []string     `mapstructure:"extractorCommand"` // External extractor (argv)
	DropEmptyColumns bool         `mapstructure:"dropEmptyColumns"`
	OutputFormat     OutputFormat `mapstructure:"outputFormat"`
	ReportFile       string       `mapstructure:"reportFile"`
	HistoryDBPath    string       `mapstructure:"historyDB"`

	// --- Caching ---
	CacheEnabled  bool        `mapstructure:"cache"`
	CacheFormat   CacheFormat `mapstructure:"cacheFormat"`
	CacheFilePath string      `mapstructure:"cacheFile"` // Defaults next to the output

	// --- Injected Dependencies ---
	Extractor             FieldExtractor `mapstructure:"-"` // Required
	SinkOpener            SinkOpener     `mapstructure:"-"` // Required
	EventHooks            Hooks          `mapstructure:"-"` // Defaults to NoOpHooks
	Logger                slog.Handler   `mapstructure:"-"` // Required
	CacheManager          CacheManager   `mapstructure:"-"` // Optional
	WalkerFactory         WalkerFactory  `mapstructure:"-"` // Optional (testing)
	DispatchWarnThreshold time.Duration  `mapstructure:"-"`
}

// --- END OF FINAL REVISED FILE pkg/extractor/options.go ---
