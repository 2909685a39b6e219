package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"
)

// NoopMetricsProvider discards every metric.
type NoopMetricsProvider struct{}

func (NoopMetricsProvider) Counter(context.Context, string, int64, map[string]string)     {}
func (NoopMetricsProvider) Gauge(context.Context, string, float64, map[string]string)     {}
func (NoopMetricsProvider) Histogram(context.Context, string, float64, map[string]string) {}
func (NoopMetricsProvider) RecordDuration(context.Context, string, time.Duration, map[string]string) {
}

// NoopTracerProvider creates spans that do nothing.
type NoopTracerProvider struct{}

func (NoopTracerProvider) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (NoopTracerProvider) Shutdown(context.Context) error { return nil }

type noopSpan struct{}

func (noopSpan) End(error)                       {}
func (noopSpan) SetAttribute(string, any)        {}
func (noopSpan) AddEvent(string, map[string]any) {}
func (noopSpan) SetStatus(SpanStatus, string)    {}
func (noopSpan) SpanContext() SpanContext        { return SpanContext{} }

// InMemoryMetricsProvider keeps metrics in maps for tests.
//
// Example:
//
//	m := observability.NewInMemoryMetricsProvider()
//	chain := rag.NewChain(retriever, assembler, client, rag.WithMetrics(m))
//	...
//	n := m.GetCounter(observability.MetricAnswers, map[string]string{"outcome": "done"})
type InMemoryMetricsProvider struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewInMemoryMetricsProvider creates a new in-memory metrics provider
func NewInMemoryMetricsProvider() *InMemoryMetricsProvider {
	return &InMemoryMetricsProvider{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (p *InMemoryMetricsProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[metricsKey(name, labels)] += value
}

func (p *InMemoryMetricsProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauges[metricsKey(name, labels)] += value
}

func (p *InMemoryMetricsProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	key := metricsKey(name, labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.histograms[key] = append(p.histograms[key], value)
}

func (p *InMemoryMetricsProvider) RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string) {
	p.Histogram(ctx, name, duration.Seconds(), labels)
}

// GetCounter returns the current counter value
func (p *InMemoryMetricsProvider) GetCounter(name string, labels map[string]string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters[metricsKey(name, labels)]
}

// GetGauge returns the current gauge value
func (p *InMemoryMetricsProvider) GetGauge(name string, labels map[string]string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gauges[metricsKey(name, labels)]
}

// GetHistogram returns a copy of the recorded observations
func (p *InMemoryMetricsProvider) GetHistogram(name string, labels map[string]string) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.histograms[metricsKey(name, labels)])
}

// metricsKey is name plus the labels in key order.
func metricsKey(name string, labels map[string]string) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range labelNames(labels) {
		sb.WriteString("|" + k + "=" + labels[k])
	}
	return sb.String()
}

// InMemoryTracerProvider records ended spans for inspection in tests.
type InMemoryTracerProvider struct {
	mu    sync.RWMutex
	spans []*RecordedSpan
}

// RecordedSpan is a finished span.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]any
	Events     []RecordedEvent
	Status     SpanStatus
	StatusDesc string
	Error      error
	TraceID    string
	SpanID     string
	ParentID   string
}

// RecordedEvent is a span event.
type RecordedEvent struct {
	Name       string
	Time       time.Time
	Attributes map[string]any
}

// NewInMemoryTracerProvider creates an empty recorder.
func NewInMemoryTracerProvider() *InMemoryTracerProvider {
	return &InMemoryTracerProvider{}
}

type inMemorySpanKey struct{}

// StartSpan starts a span. Children started from the returned context
// share its trace id.
func (p *InMemoryTracerProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := newSpanConfig(opts)

	rec := &RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Attributes: make(map[string]any, len(cfg.attributes)),
		SpanID:     generateID(8),
	}
	for k, v := range cfg.attributes {
		rec.Attributes[k] = v
	}
	if parent, ok := ctx.Value(inMemorySpanKey{}).(*RecordedSpan); ok {
		rec.TraceID = parent.TraceID
		rec.ParentID = parent.SpanID
	} else {
		rec.TraceID = generateID(16)
	}

	span := &inMemorySpan{provider: p, rec: rec}
	return context.WithValue(ctx, inMemorySpanKey{}, rec), span
}

// Shutdown is a no-op.
func (p *InMemoryTracerProvider) Shutdown(context.Context) error { return nil }

// GetSpans returns the ended spans in end order.
func (p *InMemoryTracerProvider) GetSpans() []*RecordedSpan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.spans)
}

// GetSpansByName returns the ended spans called name.
func (p *InMemoryTracerProvider) GetSpansByName(name string) []*RecordedSpan {
	var out []*RecordedSpan
	for _, s := range p.GetSpans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

type inMemorySpan struct {
	mu       sync.Mutex
	provider *InMemoryTracerProvider
	rec      *RecordedSpan
}

func (s *inMemorySpan) End(err error) {
	s.mu.Lock()
	s.rec.EndTime = time.Now()
	s.rec.Error = err
	if err != nil {
		s.rec.Status = SpanStatusError
		s.rec.StatusDesc = err.Error()
	}
	s.mu.Unlock()

	s.provider.mu.Lock()
	s.provider.spans = append(s.provider.spans, s.rec)
	s.provider.mu.Unlock()
}

func (s *inMemorySpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Attributes[key] = value
}

func (s *inMemorySpan) AddEvent(name string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Events = append(s.rec.Events, RecordedEvent{Name: name, Time: time.Now(), Attributes: attrs})
}

func (s *inMemorySpan) SetStatus(code SpanStatus, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Status = code
	s.rec.StatusDesc = description
}

func (s *inMemorySpan) SpanContext() SpanContext {
	return SpanContext{TraceID: s.rec.TraceID, SpanID: s.rec.SpanID}
}

func generateID(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
