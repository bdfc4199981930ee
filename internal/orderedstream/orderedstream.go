// Package orderedstream restores a strictly ascending prefix sequence
// from the arbitrary completion order of concurrent downloads.
package orderedstream

import (
	"errors"
	"fmt"

	"github.com/rpcpool/hibp-store/internal/downloader"
	"github.com/rpcpool/hibp-store/internal/prefix"
	"github.com/rpcpool/hibp-store/internal/pwned"
)

// ErrDiscontinuous is returned when the upstream prefix set is not
// contiguous: a gap was detected at the point a chunk arrived out of
// the expected order, or the upstream ended while the reorder buffer
// still held chunks waiting for a predecessor that never arrived.
type ErrDiscontinuous struct {
	Expected *prefix.Prefix // nil if the stream was expected to have ended
	Got      prefix.Prefix
}

func (e ErrDiscontinuous) Error() string {
	if e.Expected == nil {
		return fmt.Sprintf("orderedstream: discontinuous: unexpected chunk for prefix %s after stream end", e.Got)
	}
	return fmt.Sprintf("orderedstream: discontinuous: expected prefix %s, got %s", e.Expected, e.Got)
}

// ErrUpstream wraps an error surfaced by the downloader.
type ErrUpstream struct {
	Err error
}

func (e ErrUpstream) Error() string { return fmt.Sprintf("orderedstream: upstream: %v", e.Err) }
func (e ErrUpstream) Unwrap() error { return e.Err }

// Stream consumes a downloader.Result channel known to cover exactly
// a contiguous prefix range starting at firstExpected, and returns
// chunks from Next in strictly ascending prefix order.
type Stream struct {
	upstream     <-chan downloader.Result
	expected     *prefix.Prefix
	buf          map[prefix.Prefix]pwned.Chunk
	upstreamDone bool
}

// New constructs a Stream reading from upstream, expecting the first
// emitted chunk to be for firstExpected.
func New(upstream <-chan downloader.Result, firstExpected prefix.Prefix) *Stream {
	e := firstExpected
	return &Stream{
		upstream: upstream,
		expected: &e,
		buf:      make(map[prefix.Prefix]pwned.Chunk),
	}
}

// Next returns the next chunk in ascending prefix order, io.EOF-style
// (false, nil error) when the stream has ended cleanly, or an error
// (ErrDiscontinuous or ErrUpstream) when the pipeline must fail fast.
func (s *Stream) Next() (pwned.Chunk, bool, error) {
	for {
		if s.expected != nil {
			if c, ok := s.buf[*s.expected]; ok {
				delete(s.buf, *s.expected)
				s.advance(c.Prefix)
				return c, true, nil
			}
		}

		if s.upstreamDone {
			if len(s.buf) > 0 {
				return pwned.Chunk{}, false, s.discontinuousOnEnd()
			}
			return pwned.Chunk{}, false, nil
		}

		res, ok := <-s.upstream
		if !ok {
			s.upstreamDone = true
			continue
		}
		if res.Err != nil {
			return pwned.Chunk{}, false, ErrUpstream{Err: res.Err}
		}

		c := res.Chunk
		switch {
		case s.expected == nil:
			return pwned.Chunk{}, false, ErrDiscontinuous{Expected: nil, Got: c.Prefix}
		case c.Prefix == *s.expected:
			s.advance(c.Prefix)
			return c, true, nil
		case s.expected.Less(c.Prefix):
			s.buf[c.Prefix] = c
		default:
			e := *s.expected
			return pwned.Chunk{}, false, ErrDiscontinuous{Expected: &e, Got: c.Prefix}
		}
	}
}

func (s *Stream) advance(emitted prefix.Prefix) {
	nxt, ok := emitted.Next()
	if !ok {
		s.expected = nil
		return
	}
	s.expected = &nxt
}

func (s *Stream) discontinuousOnEnd() error {
	var min prefix.Prefix
	first := true
	for p := range s.buf {
		if first || p.Less(min) {
			min = p
			first = false
		}
	}
	return ErrDiscontinuous{Expected: s.expected, Got: min}
}

// BufSize reports the current size of the reorder buffer. With a
// downloader of W workers it stays at most W-1: a chunk can only be
// buffered while another worker is still handling its predecessor.
func (s *Stream) BufSize() int { return len(s.buf) }

// Flatten drains a Stream, calling emit for every password in
// ascending (prefix, in-chunk-order) sequence. It stops and returns
// the first error encountered, wrapping non-ErrDiscontinuous/ErrUpstream
// errors is unnecessary since Next already returns typed errors.
func Flatten(s *Stream, emit func(pwned.Pwd) error) error {
	for {
		c, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		for _, rec := range c.Passwords {
			if err := emit(rec); err != nil {
				return err
			}
		}
	}
}

// IsDiscontinuous reports whether err is or wraps ErrDiscontinuous.
func IsDiscontinuous(err error) bool {
	var d ErrDiscontinuous
	return errors.As(err, &d)
}
