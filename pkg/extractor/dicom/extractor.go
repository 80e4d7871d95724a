// --- START OF FINAL REVISED FILE pkg/extractor/dicom/extractor.go ---
package dicom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

// PresetCore selects CorePreset when given as a tag.
const PresetCore = "core"

const fingerprintVersion = "dicom/1"

// Options configures the header extractor.
type Options struct {
	// Tags limits extraction to these keywords or tags ("0010,0010",
	// "(0010, 0010)", "00100010"). "core" expands to CorePreset. Empty means
	// every element. A selected sequence keeps all of its nested elements.
	Tags   []string
	Logger slog.Handler
}

// Extractor reads the header of DICOM Part 10 files into records.
type Extractor struct {
	selector    map[Tag]bool
	fingerprint string
	logger      *slog.Logger
}

// New resolves the tag selection. Unknown keywords or malformed tags are an
// error wrapping extractor.ErrConfigValidation.
func New(opts Options) (*Extractor, error) {
	handler := opts.Logger
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	selector, err := resolveTags(opts.Tags)
	if err != nil {
		return nil, err
	}
	e := &Extractor{
		selector: selector,
		logger:   slog.New(handler).With(slog.String("component", "dicomExtractor")),
	}
	e.fingerprint = buildFingerprint(selector)
	e.logger.Debug("DICOM extractor ready", slog.Int("selectedTags", len(selector)))
	return e, nil
}

func resolveTags(specs []string) (map[Tag]bool, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	selector := make(map[Tag]bool)
	var add func(spec string) error
	add = func(spec string) error {
		spec = strings.TrimSpace(spec)
		switch {
		case spec == "":
			return nil
		case strings.EqualFold(spec, PresetCore):
			for _, kw := range CorePreset {
				if err := add(kw); err != nil {
					return err
				}
			}
			return nil
		}
		if tag, ok := keywordIndex[spec]; ok {
			selector[tag] = true
			return nil
		}
		tag, err := ParseTag(spec)
		if err != nil {
			return fmt.Errorf("%w: unknown DICOM keyword or tag %q", extractor.ErrConfigValidation, spec)
		}
		selector[tag] = true
		return nil
	}
	for _, spec := range specs {
		if err := add(spec); err != nil {
			return nil, err
		}
	}
	if len(selector) == 0 {
		return nil, nil
	}
	return selector, nil
}

func buildFingerprint(selector map[Tag]bool) string {
	if selector == nil {
		return fingerprintVersion + ":all"
	}
	tags := make([]string, 0, len(selector))
	for t := range selector {
		tags = append(tags, fmt.Sprintf("%08X", uint32(t)))
	}
	sort.Strings(tags)
	return fingerprintVersion + ":" + strings.Join(tags, ",")
}

// Fingerprint identifies the extractor version and tag selection for cache
// invalidation.
func (e *Extractor) Fingerprint() string { return e.fingerprint }

// Extract parses path. Failures are *extractor.ExtractError values: io for
// open/read errors, unsupported when the file is not DICOM Part 10, malformed
// for truncated or inconsistent content, timeout when ctx expires.
func (e *Extractor) Extract(ctx context.Context, path string) (*extractor.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, extractor.NewExtractError(extractor.ErrorKindIO, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, extractor.NewExtractError(extractor.ErrorKindIO, path, err)
	}

	rec := extractor.NewRecord(path)
	p := newParser(path, f, info.Size(), e.selector, rec)
	if err := p.parse(ctx); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, extractor.NewExtractError(extractor.ErrorKindTimeout, path, err)
		case errors.Is(err, context.Canceled):
			return nil, extractor.NewExtractError(extractor.ErrorKindCancelled, path, err)
		}
		return nil, err
	}
	e.logger.Debug("Header parsed", slog.String("path", path), slog.Int("fields", rec.Len()-1))
	return rec, nil
}

// --- END OF FINAL REVISED FILE pkg/extractor/dicom/extractor.go ---
