package retry

import (
	"sync"
	"testing"

	"github.com/rpcpool/hibp-store/internal/prefix"
)

func TestPrefixQueueRange(t *testing.T) {
	q := NewPrefixQueue(prefix.MustNew(5), prefix.MustNew(8))
	var got []uint32
	for {
		p, ok := q.Next()
		if !ok {
			break
		}
		got = append(got, uint32(p))
	}
	want := []uint32{5, 6, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPrefixQueueEmptyRange(t *testing.T) {
	q := NewPrefixQueue(prefix.MustNew(10), prefix.MustNew(9))
	if _, ok := q.Next(); ok {
		t.Fatalf("expected immediately exhausted queue")
	}
}

func TestReportFailureConcurrent(t *testing.T) {
	q := NewPrefixQueue(prefix.MustNew(0), prefix.MustNew(100))
	var wg sync.WaitGroup
	for _, v := range []uint32{50, 10, 90, 30} {
		v := v
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.ReportFailure(prefix.MustNew(v))
		}()
	}
	wg.Wait()

	failures := q.Failures()
	if len(failures) != 4 {
		t.Fatalf("got %d failures, want 4", len(failures))
	}

	first, ok := q.FirstFailure()
	if !ok || first != prefix.MustNew(10) {
		t.Fatalf("FirstFailure() = %v, %v, want 10", first, ok)
	}
}

func TestFirstFailureNoneReported(t *testing.T) {
	q := NewPrefixQueue(prefix.MustNew(0), prefix.MustNew(10))
	if _, ok := q.FirstFailure(); ok {
		t.Fatalf("expected no failure")
	}
}
