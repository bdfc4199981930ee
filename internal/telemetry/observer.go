package telemetry

import (
	"context"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"
	"k8s.io/klog/v2"

	"github.com/rpcpool/hibp-store/internal/downloader"
	"github.com/rpcpool/hibp-store/internal/prefix"
)

// log is the library-scoped logger, following the teacher's
// store/store.go convention of a package-level go-log/v2 logger
// separate from the CLI's klog calls.
var log = logging.Logger("hibpstore")

// Observer adapts internal/downloader.Observer events onto klog,
// the go-log/v2 scoped logger, and the package's Prometheus metrics.
// Errors go to klog; worker lifecycle and per-prefix chatter go to the
// scoped debug logger so they can be silenced independently via
// go-log/v2's per-subsystem level control.
type Observer struct {
	running int64
}

// NewObserver constructs a telemetry Observer. The zero value is also
// ready to use.
func NewObserver() *Observer { return &Observer{} }

func (o *Observer) WorkerStart(worker int) {
	n := atomic.AddInt64(&o.running, 1)
	metricsRunningWorkers.Set(float64(n))
	log.Debugf("worker %d started", worker)
}

func (o *Observer) PrefixDequeued(worker int, p prefix.Prefix) {
	log.Debugf("worker %d dequeued prefix %s", worker, p)
}

func (o *Observer) PrefixFetched(worker int, p prefix.Prefix) {
	metricsPrefixesProcessed.Inc()
	log.Debugf("worker %d fetched prefix %s", worker, p)
}

func (o *Observer) ChunkSent(worker int, p prefix.Prefix, count int) {
	metricsPasswordsProcessed.Add(float64(count))
	log.Debugf("worker %d sent %d records for prefix %s", worker, count, p)
}

func (o *Observer) Error(worker int, err *downloader.DownloadError) {
	metricsDownloadErrors.WithLabelValues(err.Kind.String()).Inc()
	klog.Errorf("worker %d: prefix %s: %s: %v", worker, err.Prefix, err.Kind, err.Err)
}

func (o *Observer) WorkerExit(worker int) {
	n := atomic.AddInt64(&o.running, -1)
	metricsRunningWorkers.Set(float64(n))
	log.Debugf("worker %d exited", worker)
}

var _ downloader.Observer = (*Observer)(nil)

// TraceIngest wraps fn in a span named "ingest", following the
// teacher's telemetry.TraceExecutionTime helper.
func TraceIngest(ctx context.Context, fn func(context.Context) error) error {
	ctx, span := Tracer("hibpstore").Start(ctx, "ingest")
	defer span.End()
	return fn(ctx)
}
