package prefix

import "sync"

// Iter enumerates every Prefix in [start, Max], in ascending order.
// Iter is not safe for concurrent use; wrap it with NewSafeIter to
// share it across downloader workers.
type Iter struct {
	next Prefix
	done bool
}

// NewIter returns an Iter starting at start. If start is already past
// Max the returned Iter is immediately exhausted.
func NewIter(start Prefix) *Iter {
	return &Iter{next: start, done: uint32(start) > Max}
}

// NewFullIter returns an Iter over the entire prefix space,
// 0x00000..=0xFFFFF.
func NewFullIter() *Iter {
	return NewIter(0)
}

// Next returns the next Prefix and true, or false once the iterator
// is exhausted.
func (it *Iter) Next() (Prefix, bool) {
	if it.done {
		return 0, false
	}
	p := it.next
	nxt, ok := p.Next()
	if !ok {
		it.done = true
	} else {
		it.next = nxt
	}
	return p, true
}

// SafeIter wraps an Iter with a mutex so it can be shared by the
// downloader's worker pool. The critical section covers only the
// dequeue itself; callers must not hold it across a fetch.
type SafeIter struct {
	mu  sync.Mutex
	it  *Iter
}

// NewSafeIter wraps it for concurrent use.
func NewSafeIter(it *Iter) *SafeIter {
	return &SafeIter{it: it}
}

// Next dequeues the next Prefix under a short lock.
func (s *SafeIter) Next() (Prefix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.it.Next()
}
