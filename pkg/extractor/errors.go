// --- START OF FINAL REVISED FILE pkg/extractor/errors.go ---
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// --- Exported Error Variables ---
// Library users can check against these using errors.Is.

var (
	// ErrConfigValidation indicates that the provided Options failed validation
	// (missing or unreadable root directory, unwritable output location, invalid values).
	// Always fatal and returned before any discovery starts.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrDiscovery indicates that a directory beneath the root could not be read.
	// Recorded in Report.DiscoveryErrors and never fatal.
	ErrDiscovery = errors.New("directory discovery failed")

	// ErrExtraction is the general category for per-file extraction failures.
	// errors.Is(err, ErrExtraction) is true for every kind-specific error below.
	ErrExtraction = errors.New("metadata extraction failed")

	// ErrMalformed indicates the file claims to be in the target format but its
	// content is truncated or inconsistent.
	ErrMalformed = fmt.Errorf("%w: malformed file", ErrExtraction)

	// ErrUnsupported indicates the file is not in a format the extractor handles.
	ErrUnsupported = fmt.Errorf("%w: unsupported format", ErrExtraction)

	// ErrExtractTimeout indicates the extractor exceeded the per-file timeout.
	ErrExtractTimeout = fmt.Errorf("%w: timed out", ErrExtraction)

	// ErrExtractPanic indicates the extractor panicked while handling a file.
	ErrExtractPanic = fmt.Errorf("%w: extractor panic", ErrExtraction)

	// ErrReadFailed indicates the file could not be opened or read.
	ErrReadFailed = fmt.Errorf("%w: failed to read file", ErrExtraction)

	// ErrExtractCancelled marks paths that were queued when the run was
	// cancelled and were never extracted.
	ErrExtractCancelled = fmt.Errorf("%w: run cancelled before extraction", ErrExtraction)

	// ErrSinkIO indicates a write failure in the output sink. Fatal: the run is
	// cancelled and partial output is removed.
	ErrSinkIO = errors.New("output sink I/O failure")

	// ErrOutputLocked indicates another process holds the cooperative lock on the
	// output path. errors.Is(err, ErrSinkIO) is also true.
	ErrOutputLocked = fmt.Errorf("%w: output is locked by another process", ErrSinkIO)

	// ErrSinkFinalized is returned by Append after Finalize or Abort.
	ErrSinkFinalized = fmt.Errorf("%w: sink already finalized", ErrSinkIO)
)

// ErrorKind classifies a per-file extraction failure.
type ErrorKind string

const (
	ErrorKindMalformed   ErrorKind = "malformed"
	ErrorKindUnsupported ErrorKind = "unsupported"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindPanic       ErrorKind = "panic"
	ErrorKindIO          ErrorKind = "io"
	ErrorKindCancelled   ErrorKind = "cancelled"
	ErrorKindUnknown     ErrorKind = "unknown"
)

// ExtractError is the typed failure returned by FieldExtractor implementations.
// It unwraps to both the kind sentinel and the underlying cause.
type ExtractError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes the kind sentinel and the cause to errors.Is / errors.As.
func (e *ExtractError) Unwrap() []error {
	errs := []error{kindSentinel(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewExtractError builds an ExtractError. Extractors use it to report the kind.
func NewExtractError(kind ErrorKind, path string, err error) *ExtractError {
	return &ExtractError{Kind: kind, Path: path, Err: err}
}

// KindOf maps any error to its ErrorKind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	switch {
	case errors.Is(err, ErrExtractTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrMalformed):
		return ErrorKindMalformed
	case errors.Is(err, ErrUnsupported):
		return ErrorKindUnsupported
	case errors.Is(err, ErrExtractPanic):
		return ErrorKindPanic
	case errors.Is(err, ErrReadFailed), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return ErrorKindIO
	case errors.Is(err, ErrExtractCancelled):
		return ErrorKindCancelled
	}
	return ErrorKindUnknown
}

func kindSentinel(kind ErrorKind) error {
	switch kind {
	case ErrorKindMalformed:
		return ErrMalformed
	case ErrorKindUnsupported:
		return ErrUnsupported
	case ErrorKindTimeout:
		return ErrExtractTimeout
	case ErrorKindPanic:
		return ErrExtractPanic
	case ErrorKindIO:
		return ErrReadFailed
	case ErrorKindCancelled:
		return ErrExtractCancelled
	}
	return ErrExtraction
}

// --- END OF FINAL REVISED FILE pkg/extractor/errors.go ---
