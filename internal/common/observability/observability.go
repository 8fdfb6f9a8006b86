// Package observability wires OpenTelemetry tracing and meters.
package observability

import (
	"context"
	"time"

	"business-directory/internal/common/config"
	"business-directory/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Observability struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	tracer         trace.Tracer
	requestCounter otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	logger         logger.Logger
}

// New builds the tracer and meter providers. Extra span processors are
// attached to the tracer provider, which is how tests capture spans.
func New(cfg config.TelemetryConfig, log logger.Logger, processors ...sdktrace.SpanProcessor) *Observability {
	o := &Observability{logger: log}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	if cfg.TracingEnabled {
		ratio := cfg.SampleRatio
		if ratio <= 0 {
			ratio = 1
		}
		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		}
		for _, p := range processors {
			opts = append(opts, sdktrace.WithSpanProcessor(p))
		}
		o.tracerProvider = sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(o.tracerProvider)
		o.tracer = o.tracerProvider.Tracer(cfg.ServiceName)
	} else {
		o.tracer = noop.NewTracerProvider().Tracer(cfg.ServiceName)
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Prometheus exporter unavailable, meters disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return o
	}

	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(o.meterProvider)
	meter := o.meterProvider.Meter(cfg.ServiceName)

	o.requestCounter, _ = meter.Int64Counter(
		"directory.operations",
		otelmetric.WithDescription("Number of directory operations by outcome"),
	)
	o.jobDuration, _ = meter.Float64Histogram(
		"directory.operation.duration",
		otelmetric.WithDescription("Directory operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return o
}

// StartSpan opens a span named after the operation.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// TraceFields returns the ids of the active span as log fields.
func TraceFields(ctx context.Context) map[string]interface{} {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}

func (o *Observability) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	if o.requestCounter != nil {
		o.requestCounter.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			o.logger.Warn("Tracer provider shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			o.logger.Warn("Meter provider shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
