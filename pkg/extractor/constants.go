// --- START OF FINAL REVISED FILE pkg/extractor/constants.go ---
package extractor

import "time"

// Default values for configuration options. The CLI registers these as
// Viper defaults; library callers get them from applyDefaults.
const (
	// DefaultOutputPath is the table written when no output is configured.
	DefaultOutputPath = "dicom_data.csv"
	// DefaultConcurrency selects runtime.NumCPU() workers.
	DefaultConcurrency = 0
	// DefaultDiscoveryConcurrency bounds parallel directory listing.
	DefaultDiscoveryConcurrency = 4
	// DefaultQueueFactor sizes the path queue as a multiple of Concurrency.
	DefaultQueueFactor = 2
	// DefaultBatchSize is the number of records per sink flush.
	DefaultBatchSize = 2000
	// DefaultFileTimeoutString is the per-file extraction deadline.
	DefaultFileTimeoutString = "30s"
	// DefaultFileTimeout is DefaultFileTimeoutString parsed.
	DefaultFileTimeout = 30 * time.Second
	// DefaultDetectByMagic also accepts files without the extension when
	// they carry the format's magic bytes.
	DefaultDetectByMagic = true
	// DefaultSkipHidden skips dot-files and dot-directories.
	DefaultSkipHidden = true
	// DefaultDropEmptyColumns removes columns that are null in every row.
	DefaultDropEmptyColumns = true
	// DefaultCacheEnabled is off: every run re-reads every file.
	DefaultCacheEnabled = false
	// DefaultCacheFormat is the cache index serialization.
	DefaultCacheFormat = CacheFormatGob
	// DefaultTuiEnabled is the default state for the terminal UI.
	DefaultTuiEnabled = true
	// DefaultOutputFormat is the format of the final summary on stdout.
	DefaultOutputFormat = OutputFormatText
	// DefaultVerbose is the default state for debug logging.
	DefaultVerbose = false
	// DefaultDispatchWarnThreshold is how long the walker may block on a
	// full queue before logging a warning.
	DefaultDispatchWarnThreshold = 2 * time.Second
)

// DefaultExtensions are the file extensions treated as candidates.
var DefaultExtensions = []string{".dcm"}

// IgnoreFileName holds extra ignore patterns, one per line, in the root directory.
const IgnoreFileName = ".dicomextractorignore"

// ReportSchemaVersion versions the JSON/YAML/TOML report layout.
const ReportSchemaVersion = "1.0"

// CommandSchemaVersion versions the stdin/stdout protocol of external
// extractor commands.
const CommandSchemaVersion = "1.0"

// --- END OF FINAL REVISED FILE pkg/extractor/constants.go ---
