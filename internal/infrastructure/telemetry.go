package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry owns the tracer and meter providers of the API
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	logger         *zap.Logger
}

// TelemetryMetrics are the instruments shared by middleware and services
type TelemetryMetrics struct {
	// HTTP
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestCount    metric.Int64Counter
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Tracker
	ProblemsSolved     metric.Int64Counter
	RevisionsScheduled metric.Int64Counter
	RevisionsCompleted metric.Int64Counter
	XPAwarded          metric.Int64Counter
	StatsCacheLookups  metric.Int64Counter
}

// NewTelemetry wires OTLP tracing and a Prometheus backed meter. When
// disabled the global noop providers are used and the same instruments
// still work.
func NewTelemetry(ctx context.Context, config *TelemetryConfig, logger *zap.Logger) (*Telemetry, error) {
	if !config.Enabled {
		logger.Info("Telemetry disabled, using noop providers")
		return &Telemetry{
			Tracer: otel.Tracer(config.ServiceName),
			Meter:  otel.Meter(config.ServiceName),
			logger: logger,
		}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		attribute.String("deployment.environment", config.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, config, res)
	if err != nil {
		return nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	logger.Info("Telemetry initialized",
		zap.String("service", config.ServiceName),
		zap.String("otlp_endpoint", config.OTLPEndpoint),
		zap.Float64("sample_ratio", config.SampleRatio),
	)

	return &Telemetry{
		TracerProvider: tp,
		MeterProvider:  mp,
		Tracer:         tp.Tracer(config.ServiceName),
		Meter:          mp.Meter(config.ServiceName),
		logger:         logger,
	}, nil
}

func newTracerProvider(ctx context.Context, config *TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPEndpoint)}
	if config.OTLPInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRatio))),
	), nil
}

// CreateMetrics registers every instrument on the meter
func (t *Telemetry) CreateMetrics() (*TelemetryMetrics, error) {
	m := &TelemetryMetrics{}
	var err error

	if m.HTTPRequestDuration, err = t.Meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP requests by route"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = t.Meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Requests currently being served"),
	); err != nil {
		return nil, err
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.HTTPRequestCount, "http.server.request.count", "HTTP requests by route, status class and caller kind"},
		{&m.ProblemsSolved, "tracker.problems.solved", "First-time problem solves"},
		{&m.RevisionsScheduled, "tracker.revisions.scheduled", "Revision tasks created"},
		{&m.RevisionsCompleted, "tracker.revisions.completed", "Revision tasks completed"},
		{&m.XPAwarded, "tracker.xp.awarded", "Experience points awarded"},
		{&m.StatsCacheLookups, "tracker.stats_cache.lookups", "Revision dashboard cache lookups by outcome"},
	}
	for _, c := range counters {
		if *c.dst, err = t.Meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
	}
	return m, nil
}

// Shutdown flushes pending spans and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	err := errors.Join(errs...)
	if err != nil {
		t.logger.Error("Telemetry shutdown failed", zap.Error(err))
	} else {
		t.logger.Info("Telemetry shutdown complete")
	}
	return err
}
