// --- START OF FINAL REVISED FILE pkg/extractor/walker.go ---
package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-enry/go-enry/v2"
	"golang.org/x/sync/errgroup"

	"github.com/stackvity/dicom-extractor/pkg/util"
)

// dicomMagicOffset is where the "DICM" marker follows the 128-byte preamble.
const dicomMagicOffset = 128

var dicomMagic = []byte("DICM")

// Walker lists the root directory tree with bounded parallelism and sends
// every candidate file path to the work queue. The queue is closed when the
// walk ends, whatever the reason.
type Walker struct {
	opts                 *Options
	root                 string
	pathChan             chan<- string
	progress             *Progress
	hooks                Hooks
	logger               *slog.Logger
	ignoreMatcher        *ignoreMatcher
	extensions           []string
	concurrency          int
	dispatchWarnDuration time.Duration
}

// NewWalker creates the default PathDiscoverer. It matches WalkerFactory.
func NewWalker(opts *Options, pathChan chan<- string, progress *Progress, loggerHandler slog.Handler) (PathDiscoverer, error) {
	logger := slog.New(loggerHandler).With(slog.String("component", "walker"))
	root := filepath.Clean(opts.InputPath)

	matcher, err := newIgnoreMatcher(root, opts.IgnorePatterns, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ignore patterns: %w", err)
	}
	logger.Debug("Ignore patterns loaded", slog.Int("count", matcher.patternCount()))

	extensions := util.NormalizeExtensions(opts.Extensions)
	if len(extensions) == 0 && !opts.DetectByMagic {
		extensions = DefaultExtensions
	}
	concurrency := opts.DiscoveryConcurrency
	if concurrency <= 0 {
		concurrency = DefaultDiscoveryConcurrency
	}
	warn := opts.DispatchWarnThreshold
	if warn <= 0 {
		warn = DefaultDispatchWarnThreshold
	}
	hooks := opts.EventHooks
	if hooks == nil {
		hooks = &NoOpHooks{}
	}
	if progress == nil {
		progress = NewProgress()
	}
	return &Walker{
		opts:                 opts,
		root:                 root,
		pathChan:             pathChan,
		progress:             progress,
		hooks:                hooks,
		logger:               logger,
		ignoreMatcher:        matcher,
		extensions:           extensions,
		concurrency:          concurrency,
		dispatchWarnDuration: warn,
	}, nil
}

// StartWalk implements PathDiscoverer. Unreadable subdirectories are recorded
// as discovery failures; only an unreadable root or cancellation is returned.
func (w *Walker) StartWalk(ctx context.Context) error {
	defer func() {
		close(w.pathChan)
		w.logger.Debug("Path queue closed")
	}()
	w.logger.Info("Starting directory walk", slog.String("path", w.root), slog.Int("discoveryConcurrency", w.concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	g.Go(func() error { return w.scanDir(gctx, g, w.root, "") })
	err := g.Wait()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			w.logger.Info("Directory walk cancelled", slog.String("reason", err.Error()))
			return err
		}
		w.logger.Error("Directory walk failed", slog.String("error", err.Error()))
		return err
	}
	w.logger.Info("Directory walk completed", slog.Int64("discovered", w.progress.Snapshot().Discovered))
	return nil
}

// scanDir lists one directory. Subdirectories are scanned on a new goroutine
// when the group has capacity and inline otherwise, so the limit never
// deadlocks the walk.
func (w *Walker) scanDir(ctx context.Context, g *errgroup.Group, dir, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return fmt.Errorf("%w: cannot read root directory '%s': %w", ErrConfigValidation, dir, err)
		}
		w.recordUnreadable(dir, err)
		if len(entries) == 0 {
			return nil
		}
	}

	for _, entry := range entries {
		name := entry.Name()
		childRel := path.Join(rel, name)
		childPath := filepath.Join(dir, name)

		if entry.Type()&fs.ModeSymlink != 0 {
			w.logger.Debug("Skipping symbolic link", slog.String("path", childRel))
			continue
		}
		if w.opts.SkipHidden && enry.IsDotFile(childPath) {
			continue
		}
		isDir := entry.IsDir()
		if w.ignoreMatcher.Match(childRel, isDir) {
			w.logger.Debug("Path ignored", slog.String("path", childRel),
				slog.String("pattern", w.ignoreMatcher.LastMatchPattern(childRel, isDir)))
			continue
		}
		if isDir {
			if !g.TryGo(func() error { return w.scanDir(ctx, g, childPath, childRel) }) {
				if err := w.scanDir(ctx, g, childPath, childRel); err != nil {
					return err
				}
			}
			continue
		}
		if !entry.Type().IsRegular() || !w.isCandidate(childPath, name) {
			continue
		}
		if err := w.dispatch(ctx, childPath); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) recordUnreadable(dir string, err error) {
	msg := err.Error()
	w.logger.Warn("Cannot read directory, skipping subtree", slog.String("path", dir), slog.String("error", msg))
	w.progress.RecordDiscoveryFailure(DiscoveryFailure{Path: dir, Message: msg})
	if hookErr := w.hooks.OnFileStatusUpdate(dir, StatusUnreadable, msg, 0); hookErr != nil {
		w.logger.Warn("Event hook OnFileStatusUpdate (unreadable) failed", slog.String("path", dir), slog.String("error", hookErr.Error()))
	}
}

// isCandidate applies the extension list, then the magic-bytes probe.
func (w *Walker) isCandidate(filePath, name string) bool {
	if util.HasExtension(name, w.extensions) {
		return true
	}
	if !w.opts.DetectByMagic {
		return false
	}
	ok, err := hasDICOMMagic(filePath)
	if err != nil {
		w.logger.Debug("Magic probe failed", slog.String("path", filePath), slog.String("error", err.Error()))
	}
	return ok
}

// hasDICOMMagic reports whether the file carries "DICM" after the preamble.
func hasDICOMMagic(filePath string) (bool, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer f.Close()
	buf := make([]byte, dicomMagicOffset+len(dicomMagic))
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(buf[dicomMagicOffset:], dicomMagic), nil
}

// dispatch sends one path to the queue, logging once if the queue stays full
// longer than the warning threshold. The path is counted before it becomes
// visible to workers so Completed never exceeds Discovered.
func (w *Walker) dispatch(ctx context.Context, filePath string) error {
	w.progress.FileDiscovered()
	timer := time.NewTimer(w.dispatchWarnDuration)
	defer timer.Stop()
	select {
	case w.pathChan <- filePath:
	case <-timer.C:
		w.logger.Warn("Path queue full, workers are saturated",
			slog.String("path", filePath), slog.Duration("threshold", w.dispatchWarnDuration))
		select {
		case w.pathChan <- filePath:
		case <-ctx.Done():
			w.progress.fileWithdrawn()
			return ctx.Err()
		}
	case <-ctx.Done():
		w.progress.fileWithdrawn()
		return ctx.Err()
	}
	if hookErr := w.hooks.OnFileDiscovered(filePath); hookErr != nil {
		w.logger.Warn("Event hook OnFileDiscovered failed", slog.String("path", filePath), slog.String("error", hookErr.Error()))
	}
	return nil
}

// --- ignoreMatcher ---

type ignoreMatcher struct {
	patterns []ignorePattern
	logger   *slog.Logger
}

type ignorePattern struct {
	pattern     string // slash-separated, without '!', leading '/' or trailing '/'
	origPattern string
	negated     bool
	isDirOnly   bool
	isRooted    bool
	prefix      string // root's path relative to the pattern's base directory
}

func newIgnoreMatcher(root string, configPatterns []string, logger *slog.Logger) (*ignoreMatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path for input: %w", err)
	}
	m := &ignoreMatcher{logger: logger.With(slog.String("component", "ignoreMatcher"))}

	ignoreFile, err := findIgnoreFile(absRoot)
	if err != nil {
		m.logger.Warn("Error searching for ignore file", slog.String("error", err.Error()))
	}
	if ignoreFile != "" {
		filePatterns, err := loadPatternsFromFile(ignoreFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore file %s: %w", ignoreFile, err)
		}
		prefix, err := filepath.Rel(filepath.Dir(ignoreFile), absRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve ignore file base %s: %w", ignoreFile, err)
		}
		m.addPatterns(filePatterns, filepath.ToSlash(prefix))
		m.logger.Debug("Loaded patterns from ignore file", slog.String("path", ignoreFile), slog.Int("count", len(filePatterns)))
	}
	m.addPatterns(configPatterns, ".")
	return m, nil
}

// findIgnoreFile walks up from the root looking for IgnoreFileName.
func findIgnoreFile(absStart string) (string, error) {
	current := absStart
	for {
		candidate := filepath.Join(current, IgnoreFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("error checking for ignore file at %s: %w", candidate, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

func loadPatternsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open ignore file %s: %w", filePath, err)
	}
	defer file.Close()
	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", filePath, err)
	}
	return patterns, nil
}

func (m *ignoreMatcher) addPatterns(raw []string, prefix string) {
	for _, r := range raw {
		p := ignorePattern{origPattern: r, prefix: prefix}
		s := strings.TrimSpace(r)
		if strings.HasPrefix(s, "!") {
			p.negated = true
			s = strings.TrimSpace(s[1:])
		}
		if strings.HasPrefix(s, "/") {
			p.isRooted = true
			s = strings.TrimPrefix(s, "/")
		}
		if strings.HasSuffix(s, "/") {
			p.isDirOnly = true
			s = strings.TrimSuffix(s, "/")
		}
		p.pattern = filepath.ToSlash(s)
		if p.pattern == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
	}
}

// decide evaluates all patterns in order; the last match wins.
func (m *ignoreMatcher) decide(relPath string, isDir bool) (bool, string) {
	ignored, by := false, ""
	for _, p := range m.patterns {
		if p.isDirOnly && !isDir {
			continue
		}
		if util.MatchesGitignore(p.pattern, path.Join(p.prefix, relPath), p.isRooted) {
			ignored, by = !p.negated, p.origPattern
		}
	}
	return ignored, by
}

// Match reports whether relPath (slash-separated, relative to the root) is ignored.
func (m *ignoreMatcher) Match(relPath string, isDir bool) bool {
	ignored, _ := m.decide(relPath, isDir)
	return ignored
}

// LastMatchPattern returns the pattern that ignored relPath, or "".
func (m *ignoreMatcher) LastMatchPattern(relPath string, isDir bool) string {
	if ignored, by := m.decide(relPath, isDir); ignored {
		return by
	}
	return ""
}

func (m *ignoreMatcher) patternCount() int { return len(m.patterns) }

// --- END OF FINAL REVISED FILE pkg/extractor/walker.go ---
