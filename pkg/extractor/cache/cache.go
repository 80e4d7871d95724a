// --- START OF FINAL REVISED FILE pkg/extractor/cache/cache.go ---
package cache

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the name of the cache index written next to the output table.
const FileName = ".dicomextractor.cache"

// SchemaVersion is the layout version of the cache file. Files written with a
// different version are discarded on Load.
const SchemaVersion = "1.0"

const (
	// FormatGob stores the index with encoding/gob.
	FormatGob = "gob"
	// FormatJSON stores the index as a single indented JSON document.
	FormatJSON = "json"
	// DefaultFormat is used when an empty or unknown format is requested.
	DefaultFormat = FormatGob
)

// ErrCacheLoad indicates the cache file exists but could not be opened.
// Decode failures and version mismatches are not errors; they empty the index.
var ErrCacheLoad = errors.New("failed to load cache index")

// ErrCachePersist indicates the cache index could not be written.
var ErrCachePersist = errors.New("failed to persist cache index")

// Field is one extracted field in its rendered cell form. Null fields keep
// their key so the column still appears in the output schema.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Null  bool   `json:"null,omitempty"`
}

// Entry is the cached extraction result for one file.
type Entry struct {
	ModTime       time.Time `json:"modTime"`
	Size          int64     `json:"size"`
	Fingerprint   string    `json:"fingerprint"`
	SchemaVersion string    `json:"schemaVersion"`
	ToolVersion   string    `json:"toolVersion"`
	Fields        []Field   `json:"fields"`
}

// FileHeader precedes the index in the cache file.
type FileHeader struct {
	SchemaVersion string `json:"schemaVersion"`
	ToolVersion   string `json:"toolVersion"`
}

type jsonFile struct {
	Header FileHeader       `json:"header"`
	Index  map[string]Entry `json:"index"`
}

// CacheManager stores extraction results keyed by file path so unchanged files
// can skip parsing on the next run.
//
// Check must be safe for concurrent use after Load. Update must be safe for
// concurrent calls from multiple workers.
type CacheManager interface {
	// Load reads the index from cachePath. A missing, corrupt or
	// version-mismatched file yields an empty index and a nil error.
	Load(cachePath string) error
	// Check returns the cached fields when the entry matches modTime, size and
	// the extractor fingerprint.
	Check(filePath string, modTime time.Time, size int64, fingerprint string) ([]Field, bool)
	// Update records fields for filePath in memory.
	Update(filePath string, modTime time.Time, size int64, fingerprint string, fields []Field) error
	// Persist writes the index to cachePath atomically.
	Persist(cachePath string) error
}

type fileCacheManager struct {
	mu            sync.RWMutex
	index         map[string]Entry
	logger        *slog.Logger
	schemaVersion string
	toolVersion   string
	format        string
}

// NewFileCacheManager returns a CacheManager backed by a local file in the
// given format ("gob" or "json").
func NewFileCacheManager(loggerHandler slog.Handler, toolVersion string, format string) CacheManager {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	format = strings.ToLower(format)
	if format != FormatJSON && format != FormatGob {
		format = DefaultFormat
	}
	if toolVersion == "" {
		toolVersion = "dev"
	}
	logger := slog.New(loggerHandler).With(
		slog.String("component", "cacheManager"),
		slog.String("format", format),
	)
	return &fileCacheManager{
		index:         make(map[string]Entry),
		logger:        logger,
		schemaVersion: SchemaVersion,
		toolVersion:   toolVersion,
		format:        format,
	}
}

// Load implements CacheManager.
func (c *fileCacheManager) Load(cachePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]Entry)

	file, err := os.Open(cachePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Info("Cache file not found, starting with empty index", "path", cachePath)
			return nil
		}
		c.logger.Error("Cannot open cache file", "path", cachePath, "error", err)
		return fmt.Errorf("%w: open '%s': %w", ErrCacheLoad, cachePath, err)
	}
	defer file.Close()

	header, index, err := c.decode(file)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			c.logger.Warn("Cache file is empty or truncated, ignoring", "path", cachePath)
		} else {
			c.logger.Warn("Cache file could not be decoded, ignoring", "path", cachePath, "error", err)
		}
		return nil
	}
	if header.SchemaVersion != c.schemaVersion {
		c.logger.Warn("Cache schema version mismatch, ignoring",
			"path", cachePath, "file_schema", header.SchemaVersion, "expected_schema", c.schemaVersion)
		return nil
	}
	if !versionsCompatible(header.ToolVersion, c.toolVersion) {
		c.logger.Warn("Cache tool version mismatch, ignoring",
			"path", cachePath, "file_version", header.ToolVersion, "tool_version", c.toolVersion)
		return nil
	}
	if index != nil {
		c.index = index
	}
	c.logger.Info("Cache loaded", "path", cachePath, "entries", len(c.index))
	return nil
}

func (c *fileCacheManager) decode(r io.Reader) (FileHeader, map[string]Entry, error) {
	if c.format == FormatJSON {
		var data jsonFile
		if err := json.NewDecoder(r).Decode(&data); err != nil {
			return FileHeader{}, nil, err
		}
		return data.Header, data.Index, nil
	}
	var header FileHeader
	dec := gob.NewDecoder(r)
	if err := dec.Decode(&header); err != nil {
		return FileHeader{}, nil, err
	}
	var index map[string]Entry
	if err := dec.Decode(&index); err != nil {
		// Header without index: an empty cache.
		if errors.Is(err, io.EOF) {
			return header, nil, nil
		}
		return FileHeader{}, nil, err
	}
	return header, index, nil
}

// versionsCompatible treats "dev" builds as compatible with anything.
func versionsCompatible(a, b string) bool {
	return a == b || a == "dev" || b == "dev"
}

// Check implements CacheManager.
func (c *fileCacheManager) Check(filePath string, modTime time.Time, size int64, fingerprint string) ([]Field, bool) {
	c.mu.RLock()
	entry, found := c.index[filePath]
	c.mu.RUnlock()

	switch {
	case !found:
		c.logger.Debug("Cache miss: no entry", "path", filePath)
		return nil, false
	case entry.SchemaVersion != c.schemaVersion || !versionsCompatible(entry.ToolVersion, c.toolVersion):
		c.logger.Debug("Cache miss: entry version", "path", filePath)
		return nil, false
	case !entry.ModTime.Equal(modTime) || entry.Size != size:
		c.logger.Debug("Cache miss: file changed", "path", filePath,
			"entry_modTime", entry.ModTime, "modTime", modTime, "entry_size", entry.Size, "size", size)
		return nil, false
	case entry.Fingerprint != fingerprint:
		c.logger.Debug("Cache miss: extractor fingerprint", "path", filePath)
		return nil, false
	}
	fields := make([]Field, len(entry.Fields))
	copy(fields, entry.Fields)
	c.logger.Debug("Cache hit", "path", filePath, "fields", len(fields))
	return fields, true
}

// Update implements CacheManager.
func (c *fileCacheManager) Update(filePath string, modTime time.Time, size int64, fingerprint string, fields []Field) error {
	stored := make([]Field, len(fields))
	copy(stored, fields)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[filePath] = Entry{
		ModTime:       modTime,
		Size:          size,
		Fingerprint:   fingerprint,
		SchemaVersion: c.schemaVersion,
		ToolVersion:   c.toolVersion,
		Fields:        stored,
	}
	return nil
}

// Persist implements CacheManager. An empty index removes the cache file.
func (c *fileCacheManager) Persist(cachePath string) error {
	c.mu.RLock()
	snapshot := make(map[string]Entry, len(c.index))
	for k, v := range c.index {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	if len(snapshot) == 0 {
		if err := os.Remove(cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to remove empty cache file", "path", cachePath, "error", err)
		}
		return nil
	}

	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory '%s': %w", ErrCachePersist, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(cachePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temporary file in '%s': %w", ErrCachePersist, dir, err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	header := FileHeader{SchemaVersion: c.schemaVersion, ToolVersion: c.toolVersion}
	if c.format == FormatJSON {
		enc := json.NewEncoder(tmp)
		enc.SetIndent("", "  ")
		err = enc.Encode(jsonFile{Header: header, Index: snapshot})
	} else {
		enc := gob.NewEncoder(tmp)
		if err = enc.Encode(header); err == nil {
			err = enc.Encode(snapshot)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrCachePersist, c.format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close '%s': %w", ErrCachePersist, tmpPath, err)
	}
	if err := os.Rename(tmpPath, cachePath); err != nil {
		return fmt.Errorf("%w: rename '%s' to '%s': %w", ErrCachePersist, tmpPath, cachePath, err)
	}
	renamed = true
	c.logger.Info("Cache persisted", "path", cachePath, "entries", len(snapshot))
	return nil
}

// NoOpCacheManager never hits and never writes.
type NoOpCacheManager struct{}

func (NoOpCacheManager) Load(string) error { return nil }

func (NoOpCacheManager) Check(string, time.Time, int64, string) ([]Field, bool) { return nil, false }

func (NoOpCacheManager) Update(string, time.Time, int64, string, []Field) error { return nil }

func (NoOpCacheManager) Persist(string) error { return nil }

// --- END OF FINAL REVISED FILE pkg/extractor/cache/cache.go ---
