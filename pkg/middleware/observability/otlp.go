package observability

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// OTLPTracerProvider exports spans over OTLP to a collector, Jaeger or
// Tempo. Call Shutdown before exit to flush.
type OTLPTracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// OTLPConfig configures the exporter.
type OTLPConfig struct {
	ServiceName    string
	ServiceVersion string

	// Endpoint is host:port, or a URL. An http:// or https:// URL selects
	// the HTTP exporter; anything else uses gRPC.
	Endpoint string

	UseHTTP      bool
	Insecure     bool
	Headers      map[string]string
	SampleRate   float64
	BatchTimeout time.Duration
}

// DefaultOTLPConfig samples everything over insecure gRPC.
func DefaultOTLPConfig(serviceName, endpoint string) OTLPConfig {
	cfg := OTLPConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Endpoint:       endpoint,
		Insecure:       true,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
	if u, err := url.Parse(endpoint); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		cfg.UseHTTP = true
		cfg.Endpoint = u.Host
		cfg.Insecure = u.Scheme == "http"
	}
	return cfg
}

// OTLPOption configures the tracer provider.
type OTLPOption func(*OTLPConfig)

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) OTLPOption {
	return func(cfg *OTLPConfig) { cfg.ServiceVersion = version }
}

// WithHeaders adds exporter headers, for example an API key.
func WithHeaders(headers map[string]string) OTLPOption {
	return func(cfg *OTLPConfig) { cfg.Headers = headers }
}

// WithSampleRate sets the ratio of traces kept, 0 to 1.
func WithSampleRate(rate float64) OTLPOption {
	return func(cfg *OTLPConfig) { cfg.SampleRate = rate }
}

// NewOTLPTracerProvider creates the exporter and the SDK provider.
func NewOTLPTracerProvider(ctx context.Context, serviceName, endpoint string, opts ...OTLPOption) (*OTLPTracerProvider, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("otlp endpoint is required")
	}
	cfg := DefaultOTLPConfig(serviceName, endpoint)
	for _, opt := range opts {
		opt(&cfg)
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	return &OTLPTracerProvider{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
	}, nil
}

// StartSpan starts a new span
func (p *OTLPTracerProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := newSpanConfig(opts)

	kind := trace.SpanKindInternal
	switch cfg.kind {
	case SpanKindServer:
		kind = trace.SpanKindServer
	case SpanKindClient:
		kind = trace.SpanKindClient
	}

	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(kind))
	for k, v := range cfg.attributes {
		span.SetAttributes(anyToAttribute(k, v))
	}
	return ctx, &otlpSpan{span: span}
}

// Shutdown flushes and stops the exporter.
func (p *OTLPTracerProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

type otlpSpan struct {
	span trace.Span
}

func (s *otlpSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func (s *otlpSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(anyToAttribute(key, value))
}

func (s *otlpSpan) AddEvent(name string, attrs map[string]any) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, anyToAttribute(k, v))
	}
	s.span.AddEvent(name, trace.WithAttributes(kv...))
}

func (s *otlpSpan) SetStatus(code SpanStatus, description string) {
	switch code {
	case SpanStatusOK:
		s.span.SetStatus(codes.Ok, description)
	case SpanStatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *otlpSpan) SpanContext() SpanContext {
	sc := s.span.SpanContext()
	return SpanContext{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
}

// anyToAttribute converts common Go values; anything else is formatted
// with %v.
func anyToAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case time.Duration:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

func createExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	if cfg.UseHTTP {
		options := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			options = append(options, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			options = append(options, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, options...)
	}

	options := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		options = append(options, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, options...)
}
