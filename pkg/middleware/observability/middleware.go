package observability

import (
	"time"

	"github.com/calque-ai/movierag/pkg/calque"
)

// Handler-level metric names.
const (
	MetricRequests        = "movierag_requests_total"
	MetricRequestDuration = "movierag_request_duration_seconds"
	MetricRequestErrors   = "movierag_request_errors_total"
	MetricInFlight        = "movierag_in_flight_requests"
)

// MetricsHandler wraps handler with request count, duration, error and
// in-flight metrics.
//
// Example:
//
//	h := observability.MetricsHandler(prom, map[string]string{"route": "ask"}, rag.Handler(chain))
func MetricsHandler(provider MetricsProvider, labels map[string]string, handler calque.Handler) calque.Handler {
	base := Labels(labels)
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		ctx := req.Context
		start := time.Now()

		provider.Gauge(ctx, MetricInFlight, 1, base)
		err := handler.ServeFlow(req, res)
		provider.Gauge(ctx, MetricInFlight, -1, base)

		provider.Counter(ctx, MetricRequests, 1, base)
		provider.RecordDuration(ctx, MetricRequestDuration, time.Since(start), base)
		if err != nil {
			provider.Counter(ctx, MetricRequestErrors, 1, base.Merge(Labels{"kind": ErrorKind(err)}))
		}
		return err
	})
}

// TracingHandler wraps handler in a span named operation.
func TracingHandler(provider TracerProvider, operation string, handler calque.Handler) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		ctx, span := provider.StartSpan(req.Context, operation, WithSpanKind(SpanKindServer))
		err := handler.ServeFlow(req.WithContext(ctx), res)
		if err != nil {
			span.SetStatus(SpanStatusError, err.Error())
			span.SetAttribute("error.kind", ErrorKind(err))
		} else {
			span.SetStatus(SpanStatusOK, "")
		}
		span.End(err)
		return err
	})
}

// ErrorKind labels err by calque.KindOf, or "unknown".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch calque.KindOf(err) {
	case calque.ErrValidation:
		return "validation"
	case calque.ErrEmbeddingService:
		return "embedding_service"
	case calque.ErrStoreUnavailable:
		return "store_unavailable"
	case calque.ErrCompletionService:
		return "completion_service"
	case calque.ErrFormat:
		return "format"
	}
	return "unknown"
}
