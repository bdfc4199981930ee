package downloader

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rpcpool/hibp-store/internal/prefix"
)

// limitedSource hands out a fixed list of prefixes, then reports
// exhaustion; it lets tests bound fan-out without iterating the full
// 2^20 prefix space.
type limitedSource struct {
	mu     sync.Mutex
	values []prefix.Prefix
}

func newLimitedSource(values ...uint32) *limitedSource {
	s := &limitedSource{}
	for _, v := range values {
		s.values = append(s.values, prefix.MustNew(v))
	}
	return s
}

func (s *limitedSource) Next() (prefix.Prefix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0, false
	}
	p := s.values[0]
	s.values = s.values[1:]
	return p, true
}

type fakeFetcher struct {
	mu    sync.Mutex
	lines map[string]string // prefix string -> body
	fail  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p, err := range f.fail {
		if strings.HasSuffix(url, p) {
			return nil, err
		}
	}
	for p, body := range f.lines {
		if strings.HasSuffix(url, p) {
			return io.NopCloser(strings.NewReader(body)), nil
		}
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func drain(t *testing.T, ch <-chan Result, timeout time.Duration) []Result {
	t.Helper()
	var out []Result
	deadline := time.After(timeout)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-deadline:
			t.Fatalf("timed out draining downloader output")
		}
	}
}

func TestDownloadSuccess(t *testing.T) {
	f := &fakeFetcher{lines: map[string]string{
		"00000": "004DDDC80AE4683948C5A1C5903584D8087:13\n",
		"00001": "",
	}}
	d := New("https://example.invalid/range/", 2, f, nil)
	src := newLimitedSource(0, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := drain(t, d.Download(ctx, src), 5*time.Second)

	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestDownloadFailFast(t *testing.T) {
	f := &fakeFetcher{fail: map[string]error{
		"00000": errors.New("boom"),
	}}
	src := newLimitedSource(0, 1, 2, 3)
	d := New("https://example.invalid/range/", 4, f, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := d.Download(ctx, src)
	var sawErr bool
	for r := range out {
		if r.Err != nil {
			sawErr = true
			if r.Err.Kind != KindHTTP {
				t.Fatalf("expected KindHTTP, got %v", r.Err.Kind)
			}
		}
	}
	if !sawErr {
		t.Fatalf("expected at least one error result")
	}
}

type countingObserver struct {
	mu     sync.Mutex
	starts int
	exits  int
}

func (o *countingObserver) WorkerStart(int) { o.mu.Lock(); o.starts++; o.mu.Unlock() }
func (o *countingObserver) PrefixDequeued(int, prefix.Prefix) {}
func (o *countingObserver) PrefixFetched(int, prefix.Prefix)  {}
func (o *countingObserver) ChunkSent(int, prefix.Prefix, int) {}
func (o *countingObserver) Error(int, *DownloadError)         {}
func (o *countingObserver) WorkerExit(int)                    { o.mu.Lock(); o.exits++; o.mu.Unlock() }

func TestObserverWorkerLifecycle(t *testing.T) {
	f := &fakeFetcher{lines: map[string]string{}}
	src := newLimitedSource(0, 1, 2, 3, 4, 5)
	obs := &countingObserver{}
	d := New("https://example.invalid/range/", 3, f, obs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := d.Download(ctx, src)
	for range out {
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.starts != 3 || obs.exits != 3 {
		t.Fatalf("expected 3 starts/exits, got starts=%d exits=%d", obs.starts, obs.exits)
	}
}
