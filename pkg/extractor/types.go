// --- START OF FINAL REVISED FILE pkg/extractor/types.go ---
package extractor

import "time"

// Status defines the possible processing states of a file during a run.
type Status string

// Constants representing the defined file processing statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCached     Status = "cached"
	// StatusUnreadable marks a directory the walker could not list.
	StatusUnreadable Status = "unreadable"
)

// OutputFormat defines the format for the final summary printed to standard output.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// CacheFormat selects the serialization of the extraction cache index.
type CacheFormat string

const (
	CacheFormatGob  CacheFormat = "gob"
	CacheFormatJSON CacheFormat = "json"
)

// Failure describes one file whose extraction failed. It is data, not an error:
// failures never propagate past the worker that produced them.
type Failure struct {
	Path    string    `json:"path" yaml:"path" toml:"path"`
	Kind    ErrorKind `json:"kind" yaml:"kind" toml:"kind"`
	Message string    `json:"message" yaml:"message" toml:"message"`
}

// DiscoveryFailure describes a directory that could not be scanned.
type DiscoveryFailure struct {
	Path    string `json:"path" yaml:"path" toml:"path"`
	Message string `json:"message" yaml:"message" toml:"message"`
}

// Outcome is produced exactly once per discovered path. Exactly one of Record
// and Failure is non-nil.
type Outcome struct {
	Path     string
	Record   *Record
	Failure  *Failure
	Cached   bool
	Duration time.Duration
}

// Succeeded reports whether the outcome carries a record.
func (o Outcome) Succeeded() bool { return o.Record != nil && o.Failure == nil }

// Batch is an ordered group of records flushed to the sink together.
// Order is extraction-completion order.
type Batch []*Record

// --- END OF FINAL REVISED FILE pkg/extractor/types.go ---
