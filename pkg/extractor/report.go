// --- START OF FINAL REVISED FILE pkg/extractor/report.go ---
package extractor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Report summarizes a single extraction run.
type Report struct {
	Summary           ReportSummary      `json:"summary" yaml:"summary" toml:"summary"`
	Failures          []Failure          `json:"failures" yaml:"failures" toml:"failures"`
	DiscoveryFailures []DiscoveryFailure `json:"discoveryFailures" yaml:"discoveryFailures" toml:"discoveryFailures"`
}

// ReportSummary holds the aggregated counters of a run.
type ReportSummary struct {
	RunID              string    `json:"runId" yaml:"runId" toml:"runId"`
	InputPath          string    `json:"inputPath" yaml:"inputPath" toml:"inputPath"`
	OutputPath         string    `json:"outputPath" yaml:"outputPath" toml:"outputPath"`
	ProfileUsed        string    `json:"profileUsed,omitempty" yaml:"profileUsed,omitempty" toml:"profileUsed,omitempty"`
	ConfigFilePath     string    `json:"configFilePath,omitempty" yaml:"configFilePath,omitempty" toml:"configFilePath,omitempty"`
	DiscoveredCount    int       `json:"discoveredCount" yaml:"discoveredCount" toml:"discoveredCount"`
	SucceededCount     int       `json:"succeededCount" yaml:"succeededCount" toml:"succeededCount"`
	FailedCount        int       `json:"failedCount" yaml:"failedCount" toml:"failedCount"`
	CachedCount        int       `json:"cachedCount" yaml:"cachedCount" toml:"cachedCount"`
	DiscoveryErrors    int       `json:"discoveryErrors" yaml:"discoveryErrors" toml:"discoveryErrors"`
	RowsWritten        int       `json:"rowsWritten" yaml:"rowsWritten" toml:"rowsWritten"`
	ColumnCount        int       `json:"columnCount" yaml:"columnCount" toml:"columnCount"`
	BatchesFlushed     int       `json:"batchesFlushed" yaml:"batchesFlushed" toml:"batchesFlushed"`
	Cancelled          bool      `json:"cancelled" yaml:"cancelled" toml:"cancelled"`
	FatalErrorOccurred bool      `json:"fatalError" yaml:"fatalError" toml:"fatalError"`
	FatalError         string    `json:"fatalErrorMessage,omitempty" yaml:"fatalErrorMessage,omitempty" toml:"fatalErrorMessage,omitempty"`
	DurationSeconds    float64   `json:"durationSeconds" yaml:"durationSeconds" toml:"durationSeconds"`
	CacheEnabled       bool      `json:"cacheEnabled" yaml:"cacheEnabled" toml:"cacheEnabled"`
	Concurrency        int       `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	Timestamp          time.Time `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
	SchemaVersion      string    `json:"schemaVersion" yaml:"schemaVersion" toml:"schemaVersion"`
}

// Complete reports whether every discovered file produced an outcome.
func (s ReportSummary) Complete() bool {
	return s.SucceededCount+s.FailedCount == s.DiscoveredCount
}

// ReportFormat selects the encoding of a report file.
type ReportFormat string

const (
	ReportFormatJSON ReportFormat = "json"
	ReportFormatYAML ReportFormat = "yaml"
	ReportFormatTOML ReportFormat = "toml"
)

// ReportFormatForPath picks the format from the file extension. Unknown
// extensions fall back to JSON.
func ReportFormatForPath(path string) ReportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReportFormatYAML
	case ".toml":
		return ReportFormatTOML
	}
	return ReportFormatJSON
}

// Encode writes the report to w.
func (r Report) Encode(w io.Writer, format ReportFormat) error {
	switch format {
	case ReportFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report as yaml: %w", err)
		}
		return enc.Close()
	case ReportFormatTOML:
		if err := toml.NewEncoder(w).Encode(r); err != nil {
			return fmt.Errorf("encode report as toml: %w", err)
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report as json: %w", err)
		}
		return nil
	}
}

// WriteFile writes the report to path in the format implied by its extension.
// The file is replaced atomically.
func (r Report) WriteFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create report file in '%s': %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := r.Encode(tmp, ReportFormatForPath(path)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report file '%s': %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("write report file '%s': %w", path, err)
	}
	return nil
}

// --- END OF FINAL REVISED FILE pkg/extractor/report.go ---
