// Package telemetry wires OpenTelemetry tracing and Prometheus metrics
// for the ingest pipeline, and adapts internal/downloader.Observer
// events onto klog (operator-facing, CLI-level logs)
// and a scoped go-log/v2 logger (library-level logs), following the
// split the teacher repo uses between its top-level klog calls and
// store/store.go's package-scoped logger.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"k8s.io/klog/v2"
)

// BuildVersion is stamped by cmd/hibpstore's main() from its
// ldflags-injected GitCommit var and attached to every trace's
// resource as service.version, so a span in a collector can be pinned
// back to the binary that produced it.
var BuildVersion = "dev"

// Init sets up OpenTelemetry tracing scoped to a single ingest run:
// the resource identifies the service, its build version, and the
// prefix range being processed, so a trace backend can tell two
// concurrent runs over disjoint ranges apart. Disabled entirely via
// DISABLE_TELEMETRY=true; exports to OTEL_EXPORTER_OTLP_ENDPOINT if
// set, otherwise to stdout. rangeLabel is a free-form attribute value
// (e.g. "00000-fffff"); pass "" to omit it.
func Init(ctx context.Context, serviceName, rangeLabel string) (func(), error) {
	if telemetryDisabled() {
		klog.Info("telemetry disabled via DISABLE_TELEMETRY")
		return func() {}, nil
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(BuildVersion),
	}
	if rangeLabel != "" {
		attrs = append(attrs, attribute.String("hibpstore.prefix_range", rangeLabel))
	}

	res, err := resource.New(ctx,
		resource.WithProcessPID(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	klog.Infof("telemetry initialized for %s (version %s)", serviceName, BuildVersion)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			klog.Errorf("telemetry shutdown: %v", err)
		}
	}, nil
}

func telemetryDisabled() bool {
	return os.Getenv("DISABLE_TELEMETRY") == "true"
}

// newExporter picks an OTLP-over-gRPC exporter when
// OTEL_EXPORTER_OTLP_ENDPOINT is set, falling back to a pretty-printed
// stdout exporter for local runs with nothing listening.
func newExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		klog.Info("telemetry exporting to stdout (OTEL_EXPORTER_OTLP_ENDPOINT unset)")
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial OTLP endpoint %s: %w", endpoint, err)
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithGRPCConn(conn)))
	if err != nil {
		return nil, err
	}
	klog.Infof("telemetry exporting to OTLP endpoint %s", endpoint)
	return exporter, nil
}

// Tracer returns a named tracer.
func Tracer(name string) trace.Tracer { return otel.Tracer(name) }
