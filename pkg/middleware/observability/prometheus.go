package observability

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusProvider implements MetricsProvider with the Prometheus client.
// Vectors are created on first use; a metric must always be recorded with
// the same label names.
//
// Scraped output looks like:
//
//	movierag_stage_duration_seconds_bucket{outcome="ok",stage="retrieving",le="0.1"} 12
type PrometheusProvider struct {
	mu         sync.RWMutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec

	durationBuckets []float64
}

// PrometheusOption configures the Prometheus provider
type PrometheusOption func(*PrometheusProvider)

// WithDurationBuckets sets custom buckets for duration histograms
func WithDurationBuckets(buckets []float64) PrometheusOption {
	return func(p *PrometheusProvider) {
		p.durationBuckets = buckets
	}
}

// WithPrometheusRegistry uses a custom Prometheus registry
func WithPrometheusRegistry(registry *prometheus.Registry) PrometheusOption {
	return func(p *PrometheusProvider) {
		p.registry = registry
	}
}

// NewPrometheusProvider creates a provider with its own registry and the Go
// runtime and process collectors. Completion calls dominate latency, so
// the default buckets reach 30 seconds.
func NewPrometheusProvider(opts ...PrometheusOption) *PrometheusProvider {
	p := &PrometheusProvider{
		registry:        prometheus.NewRegistry(),
		counters:        make(map[string]*prometheus.CounterVec),
		gauges:          make(map[string]*prometheus.GaugeVec),
		histograms:      make(map[string]*prometheus.HistogramVec),
		durationBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}
	for _, opt := range opts {
		opt(p)
	}

	p.registry.MustRegister(collectors.NewGoCollector())
	p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return p
}

// Counter increments a counter metric
func (p *PrometheusProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	p.counter(name, labels).With(labels).Add(float64(value))
}

// Gauge adds value to a gauge metric
func (p *PrometheusProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	p.gauge(name, labels).With(labels).Add(value)
}

// Histogram records a value in a histogram
func (p *PrometheusProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	p.histogram(name, labels).With(labels).Observe(value)
}

// RecordDuration records a duration in seconds
func (p *PrometheusProvider) RecordDuration(_ context.Context, name string, duration time.Duration, labels map[string]string) {
	p.histogram(name, labels).With(labels).Observe(duration.Seconds())
}

// Handler serves the registry for scraping.
func (p *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying Prometheus registry
func (p *PrometheusProvider) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusProvider) counter(name string, labels map[string]string) *prometheus.CounterVec {
	return getOrCreate(&p.mu, p.counters, name, func() *prometheus.CounterVec {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: "Counter for " + name}, labelNames(labels))
		p.registry.MustRegister(v)
		return v
	})
}

func (p *PrometheusProvider) gauge(name string, labels map[string]string) *prometheus.GaugeVec {
	return getOrCreate(&p.mu, p.gauges, name, func() *prometheus.GaugeVec {
		v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: "Gauge for " + name}, labelNames(labels))
		p.registry.MustRegister(v)
		return v
	})
}

func (p *PrometheusProvider) histogram(name string, labels map[string]string) *prometheus.HistogramVec {
	return getOrCreate(&p.mu, p.histograms, name, func() *prometheus.HistogramVec {
		v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    "Histogram for " + name,
			Buckets: p.durationBuckets,
		}, labelNames(labels))
		p.registry.MustRegister(v)
		return v
	})
}

// getOrCreate does a read-locked lookup and a double-checked create.
func getOrCreate[V any](mu *sync.RWMutex, m map[string]V, name string, create func() V) V {
	mu.RLock()
	v, ok := m[name]
	mu.RUnlock()
	if ok {
		return v
	}

	mu.Lock()
	defer mu.Unlock()
	if v, ok = m[name]; ok {
		return v
	}
	v = create()
	m[name] = v
	return v
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
