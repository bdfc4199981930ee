// Package ingest wires PrefixIter -> Downloader -> OrderedStream ->
// flatten -> Store.Save into the single pipeline spec.md §2 describes,
// for use by cmd/hibpstore.
package ingest

import (
	"context"
	"fmt"

	"github.com/rpcpool/hibp-store/internal/config"
	"github.com/rpcpool/hibp-store/internal/downloader"
	"github.com/rpcpool/hibp-store/internal/fetch"
	"github.com/rpcpool/hibp-store/internal/orderedstream"
	"github.com/rpcpool/hibp-store/internal/prefix"
	"github.com/rpcpool/hibp-store/internal/pwned"
	"github.com/rpcpool/hibp-store/internal/retry"
	"github.com/rpcpool/hibp-store/internal/store"
)

// Result summarizes a completed ingest run.
type Result struct {
	Records int64
	Bytes   int64
}

// FailureError wraps a pipeline error with the earliest prefix the
// downloader reported as failed, so a caller can tell an operator
// where to resume (see spec.md §5: retries live above the Downloader).
type FailureError struct {
	Err          error
	FirstFailure prefix.Prefix
	HasFailure   bool
}

func (e *FailureError) Error() string { return e.Err.Error() }
func (e *FailureError) Unwrap() error { return e.Err }

// Run executes one full ingest pass over [cfg.StartPrefix,
// cfg.EndPrefix]. observer receives downloader events (pass
// downloader.NopObserver{} or nil for none); fetcher is the HTTP
// collaborator (pass nil to construct a default fetch.HTTPFetcher
// from cfg.HTTPTimeout and cfg.MaxRetries). If the pipeline itself
// fails, the returned error is a *FailureError carrying the earliest
// failed prefix, if the downloader reported one, so the caller can
// suggest a --start-prefix for the next attempt; configuration and
// final Stat errors are returned unwrapped.
func Run(ctx context.Context, cfg config.Config, fetcher fetch.Fetcher, observer downloader.Observer) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	start, ok := prefix.New(cfg.StartPrefix)
	if !ok {
		return Result{}, fmt.Errorf("ingest: invalid start prefix %#x", cfg.StartPrefix)
	}
	end, ok := prefix.New(cfg.EndPrefix)
	if !ok {
		return Result{}, fmt.Errorf("ingest: invalid end prefix %#x", cfg.EndPrefix)
	}

	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(
			fetch.WithTimeout(cfg.HTTPTimeout),
			fetch.WithMaxRetries(cfg.MaxRetries),
		)
	}
	if observer == nil {
		observer = downloader.NopObserver{}
	}

	queue := retry.NewPrefixQueue(start, end)
	d := downloader.New(cfg.BaseURL, cfg.Workers, fetcher, &failureTrackingObserver{Observer: observer, queue: queue})

	results := d.Download(ctx, queue)
	stream := orderedstream.New(results, start)

	s := store.New(cfg.OutPath, store.WithTmpPath(cfg.TmpPath))

	if err := flattenInto(ctx, stream, s); err != nil {
		fe := &FailureError{Err: err}
		if p, ok := queue.FirstFailure(); ok {
			fe.FirstFailure, fe.HasFailure = p, true
		}
		return Result{}, fe
	}

	stat, err := s.Stat()
	if err != nil {
		return Result{}, err
	}

	return Result{Records: stat.Records, Bytes: stat.Bytes}, nil
}

// failureTrackingObserver forwards every event to the wrapped Observer
// and additionally records failed prefixes into queue, so Run can
// report a resume point after a fail-fast pipeline error.
type failureTrackingObserver struct {
	downloader.Observer
	queue *retry.PrefixQueue
}

func (f *failureTrackingObserver) Error(worker int, err *downloader.DownloadError) {
	f.Observer.Error(worker, err)
	f.queue.ReportFailure(err.Prefix)
}

// flattenInto drains stream through a single Store.Save call, so the
// store sees the pipeline's ordered output as one continuous write
// rather than buffering the whole corpus in memory first.
func flattenInto(ctx context.Context, stream *orderedstream.Stream, s *store.LocalStore) error {
	var pending []pwned.Pwd
	idx := 0

	next := func() (pwned.Pwd, bool, error) {
		for idx >= len(pending) {
			chunk, ok, err := stream.Next()
			if err != nil {
				return pwned.Pwd{}, false, err
			}
			if !ok {
				// The downloader closes its channel without an error when
				// ctx is canceled, so an end of stream after cancellation
				// is a truncated corpus: fail the save instead of
				// publishing it.
				if err := ctx.Err(); err != nil {
					return pwned.Pwd{}, false, err
				}
				return pwned.Pwd{}, false, nil
			}
			pending = chunk.Passwords
			idx = 0
		}
		rec := pending[idx]
		idx++
		return rec, true, nil
	}

	return s.Save(next)
}
