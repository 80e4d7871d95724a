// --- START OF FINAL REVISED FILE pkg/extractor/aggregator_test.go ---
package extractor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu       sync.Mutex
	batches  []Batch
	failOn   int
	failWith error
	calls    int
}

func (s *fakeSink) Append(_ context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn > 0 && s.calls >= s.failOn {
		return s.failWith
	}
	s.batches = append(s.batches, append(Batch(nil), b...))
	return nil
}

func (s *fakeSink) Finalize(context.Context) (SinkResult, error) { return SinkResult{}, nil }
func (s *fakeSink) Abort() error                                  { return nil }

func discard() slog.Handler { return slog.NewTextHandler(io.Discard, nil) }

func success(path string) Outcome {
	return Outcome{Path: path, Record: NewRecord(path)}
}

func failure(path string) Outcome {
	return Outcome{Path: path, Failure: &Failure{Path: path, Kind: ErrorKindMalformed, Message: "bad"}}
}

func runAggregator(agg *aggregator, outcomes []Outcome) {
	ch := make(chan Outcome)
	done := make(chan struct{})
	go agg.run(context.Background(), ch, done)
	for _, o := range outcomes {
		ch <- o
	}
	close(ch)
	<-done
}

func TestAggregator_FlushesFullBatchesAndRemainder(t *testing.T) {
	sink := &fakeSink{}
	progress := NewProgress()
	agg := newAggregator(sink, 2, progress, discard(), nil)

	runAggregator(agg, []Outcome{
		success("/1"), failure("/2"), success("/3"), success("/4"), success("/5"),
	})

	require.NoError(t, agg.err())
	require.Len(t, sink.batches, 2)
	assert.Equal(t, "/1", sink.batches[0][0].Path())
	assert.Equal(t, "/3", sink.batches[0][1].Path())
	assert.Len(t, sink.batches[1], 2)
	assert.Equal(t, "/5", sink.batches[1][1].Path(), "completion order is kept")

	snap := progress.Snapshot()
	assert.Equal(t, int64(4), snap.Succeeded)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(4), snap.RowsWritten)
	assert.Equal(t, int64(2), snap.BatchesFlushed)
	assert.Equal(t, []Failure{{Path: "/2", Kind: ErrorKindMalformed, Message: "bad"}}, progress.Failures())
}

func TestAggregator_CountsCachedOutcomes(t *testing.T) {
	progress := NewProgress()
	agg := newAggregator(&fakeSink{}, 10, progress, discard(), nil)
	o := success("/c")
	o.Cached = true
	runAggregator(agg, []Outcome{o, success("/d")})

	snap := progress.Snapshot()
	assert.Equal(t, int64(2), snap.Succeeded)
	assert.Equal(t, int64(1), snap.Cached)
}

func TestAggregator_SinkFailureStopsWritesButKeepsDraining(t *testing.T) {
	boom := errors.New("disk full")
	sink := &fakeSink{failOn: 2, failWith: boom}
	progress := NewProgress()
	var fatal []error
	agg := newAggregator(sink, 1, progress, discard(), func(err error) { fatal = append(fatal, err) })

	runAggregator(agg, []Outcome{success("/1"), success("/2"), success("/3"), failure("/4")})

	require.Error(t, agg.err())
	assert.ErrorIs(t, agg.err(), boom)
	require.Len(t, fatal, 1, "fatal callback fires once")
	assert.Equal(t, 2, sink.calls, "no append after the failure")
	assert.Len(t, sink.batches, 1)

	snap := progress.Snapshot()
	assert.Equal(t, int64(3), snap.Succeeded)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(1), snap.RowsWritten)
}

func TestAggregator_DefaultBatchSize(t *testing.T) {
	agg := newAggregator(&fakeSink{}, 0, NewProgress(), discard(), nil)
	assert.Equal(t, DefaultBatchSize, agg.batchSize)
}

// --- END OF FINAL REVISED FILE pkg/extractor/aggregator_test.go ---
