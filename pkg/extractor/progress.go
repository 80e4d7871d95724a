// --- START OF FINAL REVISED FILE pkg/extractor/progress.go ---
package extractor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress holds the live counters of a run. Counter updates are lock-free;
// failure lists are appended under a short mutex so no producer waits on I/O.
type Progress struct {
	discovered      atomic.Int64
	succeeded       atomic.Int64
	failed          atomic.Int64
	cached          atomic.Int64
	discoveryFailed atomic.Int64
	rowsWritten     atomic.Int64
	batchesFlushed  atomic.Int64

	mu                sync.Mutex
	failures          []Failure
	discoveryFailures []DiscoveryFailure

	startedAt time.Time
}

// ProgressSnapshot is a point-in-time copy of the counters.
type ProgressSnapshot struct {
	Discovered      int64
	Succeeded       int64
	Failed          int64
	Cached          int64
	DiscoveryFailed int64
	RowsWritten     int64
	BatchesFlushed  int64
	Elapsed         time.Duration
}

// Completed is the number of discovered files that have an outcome.
func (s ProgressSnapshot) Completed() int64 { return s.Succeeded + s.Failed }

// Pending is the number of discovered files still queued or in flight.
func (s ProgressSnapshot) Pending() int64 {
	if p := s.Discovered - s.Completed(); p > 0 {
		return p
	}
	return 0
}

// NewProgress starts the run clock.
func NewProgress() *Progress {
	return &Progress{startedAt: time.Now()}
}

// FileDiscovered counts one candidate path.
func (p *Progress) FileDiscovered() { p.discovered.Add(1) }

// fileWithdrawn undoes FileDiscovered for a path that never reached the queue.
func (p *Progress) fileWithdrawn() { p.discovered.Add(-1) }

// RecordSuccess counts one extracted file. cached marks results served from
// the cache; they are counted in both Succeeded and Cached.
func (p *Progress) RecordSuccess(cached bool) {
	p.succeeded.Add(1)
	if cached {
		p.cached.Add(1)
	}
}

// RecordFailure counts and keeps one failed file.
func (p *Progress) RecordFailure(f Failure) {
	p.failed.Add(1)
	p.mu.Lock()
	p.failures = append(p.failures, f)
	p.mu.Unlock()
}

// RecordDiscoveryFailure keeps one unreadable directory.
func (p *Progress) RecordDiscoveryFailure(f DiscoveryFailure) {
	p.discoveryFailed.Add(1)
	p.mu.Lock()
	p.discoveryFailures = append(p.discoveryFailures, f)
	p.mu.Unlock()
}

// RecordFlush counts one batch written to the sink.
func (p *Progress) RecordFlush(rows int) {
	p.batchesFlushed.Add(1)
	p.rowsWritten.Add(int64(rows))
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Discovered:      p.discovered.Load(),
		Succeeded:       p.succeeded.Load(),
		Failed:          p.failed.Load(),
		Cached:          p.cached.Load(),
		DiscoveryFailed: p.discoveryFailed.Load(),
		RowsWritten:     p.rowsWritten.Load(),
		BatchesFlushed:  p.batchesFlushed.Load(),
		Elapsed:         time.Since(p.startedAt),
	}
}

// Failures returns a copy of the failure list in arrival order.
func (p *Progress) Failures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Failure, len(p.failures))
	copy(out, p.failures)
	return out
}

// DiscoveryFailures returns a copy of the discovery failure list.
func (p *Progress) DiscoveryFailures() []DiscoveryFailure {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]DiscoveryFailure, len(p.discoveryFailures))
	copy(out, p.discoveryFailures)
	return out
}

// StartedAt returns when the run began.
func (p *Progress) StartedAt() time.Time { return p.startedAt }

// --- END OF FINAL REVISED FILE pkg/extractor/progress.go ---
