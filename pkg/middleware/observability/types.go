// Package observability carries the pipeline's telemetry: per-call stage
// traces, metrics (Prometheus or in memory), OpenTelemetry spans exported
// over OTLP, and health checks for the serving process.
package observability

import (
	"context"
	"maps"
	"time"
)

// MetricsProvider records counters, gauges and histograms.
type MetricsProvider interface {
	// Counter increments a counter metric by value.
	Counter(ctx context.Context, name string, value int64, labels map[string]string)

	// Gauge adds value to a gauge. Pass negative values to decrease.
	Gauge(ctx context.Context, name string, value float64, labels map[string]string)

	// Histogram records one observation.
	Histogram(ctx context.Context, name string, value float64, labels map[string]string)

	// RecordDuration records duration in seconds as a histogram observation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string)
}

// TracerProvider starts spans.
//
// Implementations:
//   - OTLPTracerProvider: exports over OTLP (gRPC or HTTP)
//   - InMemoryTracerProvider: records spans for tests
//   - NoopTracerProvider: does nothing
type TracerProvider interface {
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Shutdown flushes pending spans.
	Shutdown(ctx context.Context) error
}

// Span is one timed operation. End must be called exactly once.
type Span interface {
	// End ends the span; a non-nil err marks it failed.
	End(err error)
	SetAttribute(key string, value any)
	AddEvent(name string, attrs map[string]any)
	SetStatus(code SpanStatus, description string)
	SpanContext() SpanContext
}

// SpanContext identifies a span for log correlation.
type SpanContext struct {
	TraceID string
	SpanID  string
}

// SpanStatus represents the status of a span
type SpanStatus int

const (
	SpanStatusUnset SpanStatus = iota
	SpanStatusOK
	SpanStatusError
)

// SpanOption configures span creation
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]any
}

// SpanKind describes the relationship between the Span, its parents, and its children
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// WithSpanKind sets the kind of span
func WithSpanKind(kind SpanKind) SpanOption {
	return func(cfg *spanConfig) {
		cfg.kind = kind
	}
}

// WithAttributes sets initial attributes on the span
func WithAttributes(attrs map[string]any) SpanOption {
	return func(cfg *spanConfig) {
		cfg.attributes = attrs
	}
}

func newSpanConfig(opts []SpanOption) *spanConfig {
	cfg := &spanConfig{kind: SpanKindInternal, attributes: map[string]any{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Labels is a convenience type for metric labels.
type Labels map[string]string

// Merge returns a new map; keys in other win.
func (l Labels) Merge(other Labels) Labels {
	result := make(Labels, len(l)+len(other))
	maps.Copy(result, l)
	maps.Copy(result, other)
	return result
}
