// --- START OF FINAL REVISED FILE pkg/extractor/aggregator.go ---
package extractor

import (
	"context"
	"fmt"
	"log/slog"
)

// aggregator is the single consumer of outcomes. It owns the pending batch
// and is the only caller of Sink.Append, so batches never interleave.
type aggregator struct {
	sink      Sink
	batchSize int
	progress  *Progress
	logger    *slog.Logger
	onFatal   func(error)

	batch   Batch
	sinkErr error
}

func newAggregator(sink Sink, batchSize int, progress *Progress, loggerHandler slog.Handler, onFatal func(error)) *aggregator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &aggregator{
		sink:      sink,
		batchSize: batchSize,
		progress:  progress,
		logger:    slog.New(loggerHandler).With(slog.String("component", "aggregator")),
		onFatal:   onFatal,
		batch:     make(Batch, 0, batchSize),
	}
}

// run drains outcomes until the channel closes, then flushes the remainder.
// After a sink failure it keeps draining so workers never block, but writes
// nothing further.
func (a *aggregator) run(ctx context.Context, outcomes <-chan Outcome, done chan<- struct{}) {
	defer close(done)
	a.logger.Debug("Aggregator started", slog.Int("batchSize", a.batchSize))
	for o := range outcomes {
		if o.Failure != nil {
			a.progress.RecordFailure(*o.Failure)
			continue
		}
		a.progress.RecordSuccess(o.Cached)
		if a.sinkErr != nil {
			continue
		}
		a.batch = append(a.batch, o.Record)
		if len(a.batch) >= a.batchSize {
			a.flush(ctx)
		}
	}
	a.flush(ctx)
	a.logger.Debug("Aggregator finished")
}

func (a *aggregator) flush(ctx context.Context) {
	if len(a.batch) == 0 || a.sinkErr != nil {
		return
	}
	if err := a.sink.Append(ctx, a.batch); err != nil {
		a.sinkErr = fmt.Errorf("append batch of %d rows: %w", len(a.batch), err)
		a.logger.Error("Sink append failed, stopping run", slog.String("error", err.Error()))
		a.batch = a.batch[:0]
		if a.onFatal != nil {
			a.onFatal(a.sinkErr)
		}
		return
	}
	a.progress.RecordFlush(len(a.batch))
	a.logger.Debug("Batch flushed", slog.Int("rows", len(a.batch)))
	a.batch = make(Batch, 0, a.batchSize)
}

// err returns the first sink failure, if any. Valid after run returns.
func (a *aggregator) err() error { return a.sinkErr }

// --- END OF FINAL REVISED FILE pkg/extractor/aggregator.go ---
