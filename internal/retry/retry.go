// Package retry implements the retry-above-the-downloader pattern
// called for by spec.md §5: the Downloader itself has no retry
// policy, so failure bookkeeping lives in a PrefixSource that records
// which prefixes failed; the earliest of them is the point from which
// an operator can start the next ingest run.
package retry

import (
	"sync"

	"github.com/rpcpool/hibp-store/internal/prefix"
)

// PrefixQueue implements downloader.PrefixSource over the inclusive
// range [start, end] and records every prefix reported as failed, so
// that an operator can resume a subsequent full ingest run from the
// first reported failure. It does not re-emit failures within the
// same run: OrderedStream requires its upstream to cover a contiguous
// range, and splicing retried prefixes back into a live stream would
// violate that contiguity.
type PrefixQueue struct {
	end prefix.Prefix

	mu     sync.Mutex
	it     *prefix.Iter
	failed []prefix.Prefix
}

// NewPrefixQueue returns a PrefixQueue over the inclusive range
// [start, end].
func NewPrefixQueue(start, end prefix.Prefix) *PrefixQueue {
	return &PrefixQueue{it: prefix.NewIter(start), end: end}
}

// Next dequeues the next prefix in the range, or (0, false) once end
// has been passed. Safe for concurrent use by multiple downloader
// workers, matching prefix.SafeIter's dequeue-only critical section.
func (q *PrefixQueue) Next() (prefix.Prefix, bool) {
	q.mu.Lock()
	p, ok := q.it.Next()
	q.mu.Unlock()
	if !ok || q.end.Less(p) {
		return 0, false
	}
	return p, true
}

// ReportFailure records p as having failed during the current attempt.
// Safe for concurrent use by multiple downloader workers.
func (q *PrefixQueue) ReportFailure(p prefix.Prefix) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, p)
}

// Failures returns every prefix reported via ReportFailure, in report
// order.
func (q *PrefixQueue) Failures() []prefix.Prefix {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]prefix.Prefix, len(q.failed))
	copy(out, q.failed)
	return out
}

// FirstFailure returns the earliest-failing prefix reported. Callers
// should resume a subsequent ingest run at or before this prefix: the
// fail-fast downloader may have dropped in-flight successes for
// prefixes up to this point, so OrderedStream's own progress (the
// contiguous prefix it last emitted) is the authoritative resume
// point when available.
func (q *PrefixQueue) FirstFailure() (prefix.Prefix, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.failed) == 0 {
		return 0, false
	}
	min := q.failed[0]
	for _, p := range q.failed[1:] {
		if p.Less(min) {
			min = p
		}
	}
	return min, true
}
