// Package downloader implements the bounded-parallel fetch pipeline
// that fans out across the HIBP prefix space with a fixed worker
// budget, failing fast on the first unrecoverable error.
//
// The worker-pool shape (shared prefix source, fan-in result channel,
// fail-fast-closes-channel) is grounded on the teacher's
// downloader/downloader.go; the fail-fast / first-error-wins
// coordination is grounded on the teacher's first-success.go use of
// golang.org/x/sync/errgroup.
package downloader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rpcpool/hibp-store/internal/fetch"
	"github.com/rpcpool/hibp-store/internal/parser"
	"github.com/rpcpool/hibp-store/internal/prefix"
	"github.com/rpcpool/hibp-store/internal/pwned"
)

// ErrorKind classifies a DownloadError.
type ErrorKind int

const (
	// KindHTTP covers transport- and status-level failures from the
	// Fetcher.
	KindHTTP ErrorKind = iota
	// KindParse covers malformed response bodies.
	KindParse
	// KindSend covers a failure to deliver a completed chunk
	// downstream (the consumer dropped the stream).
	KindSend
)

func (k ErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	case KindSend:
		return "send"
	default:
		return "unknown"
	}
}

// DownloadError carries the prefix that failed so a caller can report
// or retry it (see internal/retry).
type DownloadError struct {
	Prefix prefix.Prefix
	Kind   ErrorKind
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloader: prefix %s: %s: %v", e.Prefix, e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Result is one item of the downloader's output stream: exactly one
// of Chunk or Err is set.
type Result struct {
	Chunk pwned.Chunk
	Err   *DownloadError
}

// PrefixSource is the shared, exclusive-access prefix supply the
// worker pool dequeues from. *prefix.SafeIter implements it; tests
// may supply a smaller fake to bound fan-out without iterating the
// full prefix space.
type PrefixSource interface {
	Next() (prefix.Prefix, bool)
}

// Observer receives structured events from the downloader. All
// methods must return quickly; a slow Observer throttles every
// worker. New substitutes NopObserver when given a nil Observer.
type Observer interface {
	WorkerStart(worker int)
	PrefixDequeued(worker int, p prefix.Prefix)
	PrefixFetched(worker int, p prefix.Prefix)
	ChunkSent(worker int, p prefix.Prefix, count int)
	Error(worker int, err *DownloadError)
	WorkerExit(worker int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) WorkerStart(int)                  {}
func (NopObserver) PrefixDequeued(int, prefix.Prefix) {}
func (NopObserver) PrefixFetched(int, prefix.Prefix)  {}
func (NopObserver) ChunkSent(int, prefix.Prefix, int) {}
func (NopObserver) Error(int, *DownloadError)         {}
func (NopObserver) WorkerExit(int)                    {}

// Downloader performs the bounded-parallel fetch described in
// spec.md §4.2.
type Downloader struct {
	baseURL    string
	maxWorkers int
	fetcher    fetch.Fetcher
	observer   Observer
}

// New constructs a Downloader. baseURL is the HIBP range endpoint,
// e.g. "https://api.pwnedpasswords.com/range/"; prefixes are appended
// directly to it.
func New(baseURL string, maxWorkers int, fetcher fetch.Fetcher, observer Observer) *Downloader {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Downloader{
		baseURL:    baseURL,
		maxWorkers: maxWorkers,
		fetcher:    fetcher,
		observer:   observer,
	}
}

// Download spawns at most d.maxWorkers concurrent fetchers pulling
// from it, and returns a channel that is closed once every worker has
// exited: after the iterator is exhausted, or after the first error is
// sent and the shared context is canceled (fail-fast: in-flight
// successful fetches from other workers may still be silently
// dropped). If ctx itself is canceled, workers exit and the channel is
// closed without any error being sent.
//
// The returned channel is unbuffered; OrderedStream's own reorder
// buffer, bounded by maxWorkers, is the system's memory bound (see
// spec.md §4.3).
func (d *Downloader) Download(ctx context.Context, it PrefixSource) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var g errgroup.Group
		for i := 0; i < d.maxWorkers; i++ {
			worker := i + 1
			g.Go(func() error {
				return d.runWorker(ctx, worker, it, out, cancel)
			})
		}
		g.Wait()
	}()

	return out
}

// runWorker implements one worker's loop: dequeue, fetch, parse,
// send; exit on exhaustion, context cancellation, or the first error
// (which it reports before canceling the shared context so its
// siblings stop promptly).
func (d *Downloader) runWorker(ctx context.Context, worker int, it PrefixSource, out chan<- Result, fail context.CancelFunc) error {
	d.observer.WorkerStart(worker)
	defer d.observer.WorkerExit(worker)

	for {
		if ctx.Err() != nil {
			return nil
		}

		p, ok := it.Next()
		if !ok {
			return nil
		}
		d.observer.PrefixDequeued(worker, p)

		chunk, derr := d.fetchOne(ctx, p)
		if derr != nil {
			d.observer.Error(worker, derr)
			select {
			case out <- Result{Err: derr}:
			case <-ctx.Done():
			}
			fail()
			return derr
		}
		d.observer.PrefixFetched(worker, p)

		select {
		case out <- Result{Chunk: chunk}:
			d.observer.ChunkSent(worker, p, len(chunk.Passwords))
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Downloader) fetchOne(ctx context.Context, p prefix.Prefix) (pwned.Chunk, *DownloadError) {
	url := d.baseURL + p.String()
	body, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return pwned.Chunk{}, &DownloadError{Prefix: p, Kind: KindHTTP, Err: err}
	}
	defer body.Close()

	chunk, err := parseBody(p, body)
	if err != nil {
		return pwned.Chunk{}, &DownloadError{Prefix: p, Kind: KindParse, Err: err}
	}
	return chunk, nil
}

// parseBody splits a \n- or \r\n-separated HIBP body into lines and
// parses each with a Parser scoped to p.
func parseBody(p prefix.Prefix, body io.Reader) (pwned.Chunk, error) {
	ps := parser.From(p)
	chunk := pwned.Chunk{Prefix: p}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		rec, err := ps.Parse(line)
		if err != nil {
			return pwned.Chunk{}, err
		}
		chunk.Passwords = append(chunk.Passwords, rec)
	}
	if err := scanner.Err(); err != nil {
		return pwned.Chunk{}, err
	}
	return chunk, nil
}
