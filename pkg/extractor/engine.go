// --- START OF FINAL REVISED FILE pkg/extractor/engine.go ---
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stackvity/dicom-extractor/pkg/extractor/cache"
)

// Engine wires the walker, worker pool, aggregator and sink for one run.
type Engine struct {
	opts          *Options
	logger        *slog.Logger
	cacheManager  CacheManager
	walkerFactory WalkerFactory
	processor     *FileProcessor
	progress      *Progress
	runID         string
	ctx           context.Context
	cancelFunc    context.CancelFunc
	concurrency   int
	queueSize     int

	fatalOnce     sync.Once
	fatalErr      error
	fatalOccurred atomic.Bool
}

// NewEngine validates opts, applies defaults and resolves dependencies.
// Every validation failure wraps ErrConfigValidation.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	if err := validateOptions(&opts); err != nil {
		logger.Error("Invalid options", slog.String("error", err.Error()))
		return nil, err
	}

	var cacheMgr CacheManager = cache.NoOpCacheManager{}
	switch {
	case opts.CacheManager != nil:
		cacheMgr = opts.CacheManager
		logger.Debug("Using provided CacheManager implementation")
	case opts.CacheEnabled:
		if opts.CacheFilePath == "" {
			opts.CacheFilePath = filepath.Join(filepath.Dir(opts.OutputPath), cache.FileName)
		}
		cacheMgr = cache.NewFileCacheManager(opts.Logger, opts.AppVersion, string(opts.CacheFormat))
	}
	if opts.CacheEnabled {
		if err := cacheMgr.Load(opts.CacheFilePath); err != nil {
			logger.Error("Cache unusable, continuing without it", slog.String("path", opts.CacheFilePath), slog.String("error", err.Error()))
			cacheMgr = cache.NoOpCacheManager{}
			opts.CacheEnabled = false
		}
	}
	opts.CacheManager = cacheMgr

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
		opts.Concurrency = concurrency
		logger.Debug("Concurrency auto-detected", "count", concurrency)
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueFactor * concurrency
		opts.QueueSize = queueSize
	}
	walkerFactory := opts.WalkerFactory
	if walkerFactory == nil {
		walkerFactory = NewWalker
	}

	engineCtx, cancelFunc := context.WithCancel(ctx)
	e := &Engine{
		opts:          &opts,
		logger:        logger,
		cacheManager:  cacheMgr,
		walkerFactory: walkerFactory,
		progress:      NewProgress(),
		runID:         uuid.NewString(),
		ctx:           engineCtx,
		cancelFunc:    cancelFunc,
		concurrency:   concurrency,
		queueSize:     queueSize,
	}
	e.processor = NewFileProcessor(e.opts, opts.Logger, cacheMgr)
	return e, nil
}

// validateOptions checks required fields and fills zero values with defaults.
func validateOptions(opts *Options) error {
	if opts.Extractor == nil {
		return fmt.Errorf("%w: Extractor cannot be nil", ErrConfigValidation)
	}
	if opts.SinkOpener == nil {
		return fmt.Errorf("%w: SinkOpener cannot be nil", ErrConfigValidation)
	}
	if opts.InputPath == "" {
		return fmt.Errorf("%w: input path cannot be empty", ErrConfigValidation)
	}
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		return fmt.Errorf("%w: cannot access root directory '%s': %w", ErrConfigValidation, opts.InputPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: root '%s' is not a directory", ErrConfigValidation, opts.InputPath)
	}
	dir, err := os.Open(opts.InputPath)
	if err != nil {
		return fmt.Errorf("%w: cannot read root directory '%s': %w", ErrConfigValidation, opts.InputPath, err)
	}
	_, readErr := dir.Readdirnames(1)
	dir.Close()
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return fmt.Errorf("%w: cannot read root directory '%s': %w", ErrConfigValidation, opts.InputPath, readErr)
	}

	if opts.OutputPath == "" {
		opts.OutputPath = DefaultOutputPath
	}
	outDir := filepath.Dir(opts.OutputPath)
	if st, err := os.Stat(outDir); err != nil || !st.IsDir() {
		return fmt.Errorf("%w: output directory '%s' does not exist", ErrConfigValidation, outDir)
	}
	if st, err := os.Stat(opts.OutputPath); err == nil && st.IsDir() {
		return fmt.Errorf("%w: output path '%s' is a directory", ErrConfigValidation, opts.OutputPath)
	}

	switch {
	case opts.Concurrency < 0:
		return fmt.Errorf("%w: concurrency cannot be negative", ErrConfigValidation)
	case opts.DiscoveryConcurrency < 0:
		return fmt.Errorf("%w: discovery concurrency cannot be negative", ErrConfigValidation)
	case opts.QueueSize < 0:
		return fmt.Errorf("%w: queue size cannot be negative", ErrConfigValidation)
	case opts.BatchSize < 0:
		return fmt.Errorf("%w: batch size cannot be negative", ErrConfigValidation)
	case opts.FileTimeout < 0:
		return fmt.Errorf("%w: file timeout cannot be negative", ErrConfigValidation)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FileTimeout == 0 {
		opts.FileTimeout = DefaultFileTimeout
	}
	if opts.DiscoveryConcurrency == 0 {
		opts.DiscoveryConcurrency = DefaultDiscoveryConcurrency
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.CacheFormat == "" {
		opts.CacheFormat = DefaultCacheFormat
	}
	return nil
}

// RunID identifies this run in reports and history.
func (e *Engine) RunID() string { return e.runID }

// Progress exposes the live counters, e.g. for a progress display.
func (e *Engine) Progress() *Progress { return e.progress }

// Cancel stops discovery. In-flight files finish or time out, queued files
// are reported as cancelled, and the sink is finalized with what was written.
func (e *Engine) Cancel() { e.cancelFunc() }

// fatal records the first fatal error and cancels the run.
func (e *Engine) fatal(err error) {
	e.fatalOnce.Do(func() {
		e.fatalErr = err
		e.fatalOccurred.Store(true)
		e.cancelFunc()
	})
}

// Run executes the pipeline and returns the report. The error is non-nil on
// sink failure, walker failure or cancellation; per-file failures are only
// reported.
func (e *Engine) Run() (Report, error) {
	defer e.cancelFunc()
	e.logger.Info("Starting extraction run",
		slog.String("runID", e.runID), slog.String("root", e.opts.InputPath),
		slog.Int("concurrency", e.concurrency), slog.Int("queueSize", e.queueSize),
		slog.Int("batchSize", e.opts.BatchSize), slog.Bool("cacheEnabled", e.opts.CacheEnabled))

	// Finalization must not be interrupted by the run's own cancellation.
	detached := context.WithoutCancel(e.ctx)

	sink, err := e.opts.SinkOpener(e.ctx, e.opts.OutputPath)
	if err != nil {
		e.fatal(fmt.Errorf("open output: %w", err))
		return e.finish(SinkResult{}, e.fatalErr)
	}

	pathChan := make(chan string, e.queueSize)
	outcomes := make(chan Outcome, e.concurrency)

	walker, err := e.walkerFactory(e.opts, pathChan, e.progress, e.opts.Logger)
	if err != nil {
		_ = sink.Abort()
		e.fatal(fmt.Errorf("walker initialization failed: %w", err))
		return e.finish(SinkResult{}, e.fatalErr)
	}

	var wg sync.WaitGroup
	e.startWorkers(&wg, detached, pathChan, outcomes)

	agg := newAggregator(sink, e.opts.BatchSize, e.progress, e.opts.Logger, e.fatal)
	aggDone := make(chan struct{})
	go agg.run(detached, outcomes, aggDone)

	walkErr := walker.StartWalk(e.ctx)
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) && !errors.Is(walkErr, context.DeadlineExceeded) {
		e.fatal(fmt.Errorf("directory walk failed: %w", walkErr))
	}

	wg.Wait()
	close(outcomes)
	<-aggDone

	if agg.err() != nil {
		if abortErr := sink.Abort(); abortErr != nil {
			e.logger.Warn("Sink abort failed", slog.String("error", abortErr.Error()))
		}
		return e.finish(SinkResult{}, e.fatalErr)
	}
	if walkErr != nil && e.fatalOccurred.Load() {
		_ = sink.Abort()
		return e.finish(SinkResult{}, e.fatalErr)
	}

	result, err := sink.Finalize(detached)
	if err != nil {
		e.fatal(fmt.Errorf("finalize output: %w", err))
		return e.finish(SinkResult{}, e.fatalErr)
	}

	var runErr error
	if ctxErr := e.ctx.Err(); ctxErr != nil {
		e.logger.Info("Run cancelled, output finalized with partial results", slog.String("reason", ctxErr.Error()))
		runErr = ctxErr
	}
	return e.finish(result, runErr)
}

// startWorkers launches the fixed pool. Workers stop taking new work once the
// run is cancelled and drain the remaining queue as cancelled outcomes.
func (e *Engine) startWorkers(wg *sync.WaitGroup, workCtx context.Context, pathChan <-chan string, outcomes chan<- Outcome) {
	e.logger.Debug("Starting worker pool", "count", e.concurrency)
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go e.worker(wg, i, workCtx, pathChan, outcomes)
	}
}

func (e *Engine) worker(wg *sync.WaitGroup, workerID int, workCtx context.Context, pathChan <-chan string, outcomes chan<- Outcome) {
	defer wg.Done()
	wLogger := e.logger.With(slog.Int("workerID", workerID))
	wLogger.Debug("Worker started")

	for path := range pathChan {
		if e.ctx.Err() != nil {
			outcomes <- Outcome{Path: path, Failure: &Failure{
				Path: path, Kind: ErrorKindCancelled, Message: ErrExtractCancelled.Error(),
			}}
			continue
		}
		outcomes <- e.processor.ProcessFile(workCtx, path)
	}
	wLogger.Debug("Worker shutting down (queue closed)")
}

// finish persists the cache, builds the report and fires OnRunComplete.
func (e *Engine) finish(result SinkResult, runErr error) (Report, error) {
	if e.opts.CacheEnabled && e.cacheManager != nil && !e.fatalOccurred.Load() {
		if err := e.cacheManager.Persist(e.opts.CacheFilePath); err != nil {
			e.logger.Error("Failed to persist cache index", slog.String("path", e.opts.CacheFilePath), slog.String("error", err.Error()))
		}
	}

	report := e.buildReport(result, runErr)
	e.logger.Info("Extraction run finished",
		slog.Duration("duration", time.Since(e.progress.StartedAt())),
		slog.Int("discovered", report.Summary.DiscoveredCount),
		slog.Int("succeeded", report.Summary.SucceededCount),
		slog.Int("failed", report.Summary.FailedCount),
		slog.Int("cached", report.Summary.CachedCount),
		slog.Int("rows", report.Summary.RowsWritten),
		slog.Bool("fatalErrorOccurred", report.Summary.FatalErrorOccurred),
	)
	if hookErr := e.opts.EventHooks.OnRunComplete(report); hookErr != nil {
		e.logger.Warn("OnRunComplete hook returned an error", slog.String("error", hookErr.Error()))
	}
	return report, runErr
}

func (e *Engine) buildReport(result SinkResult, runErr error) Report {
	snap := e.progress.Snapshot()
	summary := ReportSummary{
		RunID:              e.runID,
		InputPath:          e.opts.InputPath,
		OutputPath:         e.opts.OutputPath,
		ProfileUsed:        e.opts.ProfileName,
		ConfigFilePath:     e.opts.ConfigFilePath,
		DiscoveredCount:    int(snap.Discovered),
		SucceededCount:     int(snap.Succeeded),
		FailedCount:        int(snap.Failed),
		CachedCount:        int(snap.Cached),
		DiscoveryErrors:    int(snap.DiscoveryFailed),
		RowsWritten:        result.Rows,
		ColumnCount:        len(result.Columns),
		BatchesFlushed:     int(snap.BatchesFlushed),
		Cancelled:          errors.Is(runErr, context.Canceled) && !e.fatalOccurred.Load(),
		FatalErrorOccurred: e.fatalOccurred.Load(),
		DurationSeconds:    snap.Elapsed.Seconds(),
		CacheEnabled:       e.opts.CacheEnabled,
		Concurrency:        e.concurrency,
		Timestamp:          time.Now().UTC(),
		SchemaVersion:      ReportSchemaVersion,
	}
	if e.fatalErr != nil {
		summary.FatalError = e.fatalErr.Error()
	}
	return Report{
		Summary:           summary,
		Failures:          e.progress.Failures(),
		DiscoveryFailures: e.progress.DiscoveryFailures(),
	}
}

// --- END OF FINAL REVISED FILE pkg/extractor/engine.go ---
