package observability

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/waittime"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount    metric.Int64Counter
	RequestDuration metric.Float64Histogram
	DBQueryDuration metric.Float64Histogram
	CacheHitCount   metric.Int64Counter
	CacheMissCount  metric.Int64Counter

	ObservationsProcessed metric.Int64Counter
	UpdatesPublished      metric.Int64Counter
	UpdatesSuppressed     metric.Int64Counter
	EventsRejected        metric.Int64Counter
	WaitMinutes           metric.Float64Histogram
}

// current is the process-wide metrics set; nil until InitMetrics succeeds.
var current atomic.Pointer[Metrics]

// Setup initializes OpenTelemetry tracing, metrics export and runtime metrics
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		_ = meterProvider.Shutdown(ctx)
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics creates the application instruments on the global meter
// provider and makes them the process-wide default for the Record helpers.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	if m.RequestCount, err = meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.DBQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.CacheHitCount, err = meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	); err != nil {
		return nil, err
	}

	if m.CacheMissCount, err = meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	); err != nil {
		return nil, err
	}

	if m.ObservationsProcessed, err = meter.Int64Counter(
		"waittime.observations.processed",
		metric.WithDescription("Observations run through the estimation pipeline"),
	); err != nil {
		return nil, err
	}

	if m.UpdatesPublished, err = meter.Int64Counter(
		"waittime.updates.published",
		metric.WithDescription("Wait-time updates published"),
	); err != nil {
		return nil, err
	}

	if m.UpdatesSuppressed, err = meter.Int64Counter(
		"waittime.updates.suppressed",
		metric.WithDescription("Estimates not published because the change was below threshold"),
	); err != nil {
		return nil, err
	}

	if m.EventsRejected, err = meter.Int64Counter(
		"waittime.events.rejected",
		metric.WithDescription("Queue events dropped before or during estimation"),
	); err != nil {
		return nil, err
	}

	if m.WaitMinutes, err = meter.Float64Histogram(
		"waittime.wait.minutes",
		metric.WithDescription("Estimated wait time of non-overloaded facilities"),
		metric.WithUnit("min"),
	); err != nil {
		return nil, err
	}

	current.Store(m)
	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordRequestMetric records a request metric with attributes
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordDBMetric records a database operation metric
func RecordDBMetric(ctx context.Context, operation string, duration time.Duration) {
	m := current.Load()
	if m == nil {
		return
	}
	m.DBQueryDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("db.operation", operation)))
}

// RecordCacheResult records a cache hit or miss
func RecordCacheResult(ctx context.Context, hit bool) {
	m := current.Load()
	if m == nil {
		return
	}
	if hit {
		m.CacheHitCount.Add(ctx, 1)
	} else {
		m.CacheMissCount.Add(ctx, 1)
	}
}

// RecordEstimation records one pipeline decision
func RecordEstimation(ctx context.Context, status string, waitMinutes float64, published bool) {
	m := current.Load()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.ObservationsProcessed.Add(ctx, 1, attrs)
	if published {
		m.UpdatesPublished.Add(ctx, 1, attrs)
	} else {
		m.UpdatesSuppressed.Add(ctx, 1, attrs)
	}
	if !math.IsInf(waitMinutes, 0) && !math.IsNaN(waitMinutes) {
		m.WaitMinutes.Record(ctx, waitMinutes)
	}
}

// RecordRejectedEvent records a dropped event with the reason it was dropped
func RecordRejectedEvent(ctx context.Context, reason string) {
	m := current.Load()
	if m == nil {
		return
	}
	m.EventsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
