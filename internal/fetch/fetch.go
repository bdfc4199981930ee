// Package fetch provides the HTTP collaborator the downloader uses to
// retrieve one prefix's worth of HIBP range-API response body.
//
// The transport tuning mirrors the teacher's downloader/downloader.go
// NewDownloader client construction; the retry loop is grounded on the
// same file's downloadChunk backoff shape, reimplemented with
// cenkalti/backoff instead of a hand-rolled exponential loop.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Fetcher retrieves the response body for a fully-qualified URL. It is
// the downloader's only collaborator with the network; tests supply a
// fake implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher is the production Fetcher, backed by net/http with
// bounded retries and a per-request timeout.
type HTTPFetcher struct {
	client     *http.Client
	timeout    time.Duration
	maxRetries uint64
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout overrides the per-request timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) { f.timeout = d }
}

// WithMaxRetries overrides the retry budget (default 5).
func WithMaxRetries(n uint64) Option {
	return func(f *HTTPFetcher) { f.maxRetries = n }
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// NewHTTPFetcher returns a Fetcher tuned the way the teacher's
// downloader tunes its own client: HTTP/2 attempted first, bounded
// idle connections, and an ExpectContinueTimeout.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		timeout:    30 * time.Second,
		maxRetries: 5,
		client: &http.Client{
			Transport: &http.Transport{
				ForceAttemptHTTP2:     true,
				DisableKeepAlives:     false,
				IdleConnTimeout:       30 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   100,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// StatusError is returned when the server answers with a non-200
// status code.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("fetch: %s: unexpected status %s", e.URL, e.Status)
}

// Fetch performs a GET against url, retrying transient failures with
// exponential backoff, and returns the response body for the caller
// to read and close.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries), ctx)

	var body io.ReadCloser
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			cancel()
			return backoff.Permanent(err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			cancel()
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			cancel()
			return backoff.Permanent(StatusError{URL: url, Status: resp.Status, Code: resp.StatusCode})
		}

		body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return body, nil
}

// cancelOnCloseBody releases the per-request context when the caller
// closes the response body, instead of leaking it until ctx itself is
// canceled.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
