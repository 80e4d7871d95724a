// --- START OF FINAL REVISED FILE pkg/extractor/processor.go ---
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/stackvity/dicom-extractor/pkg/extractor/cache"
)

// FileProcessor runs one file through cache lookup and extraction. It always
// produces exactly one Outcome per call.
type FileProcessor struct {
	extractor    FieldExtractor
	cacheManager CacheManager
	cacheEnabled bool
	fingerprint  string
	timeout      time.Duration
	hooks        Hooks
	logger       *slog.Logger
}

// NewFileProcessor creates a processor bound to the run's extractor and cache.
func NewFileProcessor(opts *Options, loggerHandler slog.Handler, cacheMgr CacheManager) *FileProcessor {
	fingerprint := fmt.Sprintf("%T", opts.Extractor)
	if fp, ok := opts.Extractor.(Fingerprinter); ok {
		fingerprint = fp.Fingerprint()
	}
	if cacheMgr == nil {
		cacheMgr = cache.NoOpCacheManager{}
	}
	timeout := opts.FileTimeout
	if timeout <= 0 {
		timeout = DefaultFileTimeout
	}
	hooks := opts.EventHooks
	if hooks == nil {
		hooks = &NoOpHooks{}
	}
	return &FileProcessor{
		extractor:    opts.Extractor,
		cacheManager: cacheMgr,
		cacheEnabled: opts.CacheEnabled,
		fingerprint:  fingerprint,
		timeout:      timeout,
		hooks:        hooks,
		logger:       slog.New(loggerHandler).With(slog.String("component", "processor")),
	}
}

// ProcessFile extracts path. ctx should not be the run's cancellable context:
// in-flight files are allowed to finish or time out after cancellation.
func (p *FileProcessor) ProcessFile(ctx context.Context, path string) Outcome {
	start := time.Now()
	p.notify(path, StatusProcessing, "", 0)

	var (
		modTime time.Time
		size    int64
		statOK  bool
	)
	if p.cacheEnabled {
		if info, err := os.Stat(path); err == nil {
			modTime, size, statOK = info.ModTime(), info.Size(), true
			if fields, hit := p.cacheManager.Check(path, modTime, size, p.fingerprint); hit {
				dur := time.Since(start)
				p.notify(path, StatusCached, "", dur)
				return Outcome{Path: path, Record: recordFromFields(path, fields), Cached: true, Duration: dur}
			}
		}
	}

	rec, err := p.extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		failure := &Failure{Path: path, Kind: KindOf(err), Message: err.Error()}
		p.logger.Debug("Extraction failed", slog.String("path", path), slog.String("kind", string(failure.Kind)), slog.String("error", failure.Message))
		p.notify(path, StatusFailed, failure.Message, dur)
		return Outcome{Path: path, Failure: failure, Duration: dur}
	}

	if p.cacheEnabled && statOK {
		if err := p.cacheManager.Update(path, modTime, size, p.fingerprint, fieldsFromRecord(rec)); err != nil {
			p.logger.Warn("Failed to update cache entry", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	p.notify(path, StatusSuccess, "", dur)
	return Outcome{Path: path, Record: rec, Duration: dur}
}

type extractResult struct {
	rec *Record
	err error
}

// extract runs the extractor on its own goroutine so a call that ignores its
// context still yields a timeout outcome. Panics become ErrorKindPanic.
func (p *FileProcessor) extract(ctx context.Context, path string) (*Record, error) {
	fileCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan extractResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Extractor panicked", slog.String("path", path), slog.Any("panicValue", r), slog.String("stack", string(debug.Stack())))
				done <- extractResult{err: NewExtractError(ErrorKindPanic, path, fmt.Errorf("%v", r))}
			}
		}()
		rec, err := p.extractor.Extract(fileCtx, path)
		done <- extractResult{rec: rec, err: err}
	}()

	select {
	case res := <-done:
		switch {
		case res.err != nil:
			if errors.Is(res.err, context.DeadlineExceeded) && fileCtx.Err() != nil {
				return nil, NewExtractError(ErrorKindTimeout, path, fmt.Errorf("exceeded %s", p.timeout))
			}
			return nil, res.err
		case res.rec == nil:
			return nil, NewExtractError(ErrorKindUnknown, path, errors.New("extractor returned no record"))
		}
		return res.rec, nil
	case <-fileCtx.Done():
		return nil, NewExtractError(ErrorKindTimeout, path, fmt.Errorf("exceeded %s", p.timeout))
	}
}

func (p *FileProcessor) notify(path string, status Status, msg string, dur time.Duration) {
	if err := p.hooks.OnFileStatusUpdate(path, status, msg, dur); err != nil {
		p.logger.Warn("Event hook OnFileStatusUpdate failed", slog.String("path", path), slog.String("status", string(status)), slog.String("error", err.Error()))
	}
}

func fieldsFromRecord(rec *Record) []cache.Field {
	fields := make([]cache.Field, 0, rec.Len())
	rec.Range(func(key string, value any) bool {
		s, ok := FormatValue(value)
		fields = append(fields, cache.Field{Key: key, Value: s, Null: !ok})
		return true
	})
	return fields
}

func recordFromFields(path string, fields []cache.Field) *Record {
	rec := NewRecord(path)
	for _, f := range fields {
		if f.Key == PathField {
			continue
		}
		if f.Null {
			rec.Set(f.Key, nil)
		} else {
			rec.Set(f.Key, f.Value)
		}
	}
	return rec
}

// --- END OF FINAL REVISED FILE pkg/extractor/processor.go ---
