package observability

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/logger"
)

// Pipeline metric names.
const (
	MetricStageDuration = "movierag_stage_duration_seconds"
	MetricStageErrors   = "movierag_stage_errors_total"
	MetricAnswers       = "movierag_answers_total"
)

// EventKind tells stage starts from stage ends.
type EventKind int

const (
	EventStageStart EventKind = iota
	EventStageEnd
)

func (k EventKind) String() string {
	if k == EventStageStart {
		return "stage_start"
	}
	return "stage_end"
}

// Event is one recorded stage transition.
type Event struct {
	Kind     EventKind
	Stage    string
	Time     time.Time
	Duration time.Duration // Set on EventStageEnd
	Err      error         // Set on a failed EventStageEnd
	Attrs    []logger.Attribute
}

// Trace follows one pipeline call. Every stage start and end is recorded,
// logged through the logger, spanned through the tracer and timed in the
// metrics provider. A Trace is created per call and passed explicitly;
// there is no process-wide switch.
type Trace struct {
	ID string

	log     *logger.Logger
	tracer  TracerProvider
	metrics MetricsProvider

	mu     sync.Mutex
	events []Event
}

// TraceOption configures a Trace.
type TraceOption func(*Trace)

// WithTraceLogger sends stage events to l.
func WithTraceLogger(l *logger.Logger) TraceOption {
	return func(t *Trace) { t.log = l }
}

// WithTracer opens a span per stage.
func WithTracer(p TracerProvider) TraceOption {
	return func(t *Trace) {
		if p != nil {
			t.tracer = p
		}
	}
}

// WithMetrics records stage durations and failures.
func WithMetrics(m MetricsProvider) TraceOption {
	return func(t *Trace) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithTraceID overrides the generated id.
func WithTraceID(id string) TraceOption {
	return func(t *Trace) {
		if id != "" {
			t.ID = id
		}
	}
}

// NewTrace creates a trace with a random id and no sinks beyond the
// in-memory event list.
func NewTrace(opts ...TraceOption) *Trace {
	t := &Trace{
		ID:      uuid.NewString(),
		tracer:  NoopTracerProvider{},
		metrics: NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Context returns ctx carrying the trace id for log correlation.
func (t *Trace) Context(ctx context.Context) context.Context {
	return calque.WithTraceID(ctx, t.ID)
}

// StageSpan is an open stage. End it exactly once.
type StageSpan struct {
	trace *Trace
	stage string
	start time.Time
	span  Span
	ctx   context.Context
}

// Start records the start of stage and returns the context to run it in.
func (t *Trace) Start(ctx context.Context, stage string, attrs ...logger.Attribute) (context.Context, *StageSpan) {
	now := time.Now()
	t.record(Event{Kind: EventStageStart, Stage: stage, Time: now, Attrs: attrs})

	spanAttrs := make(map[string]any, len(attrs)+1)
	spanAttrs["trace.id"] = t.ID
	for _, a := range attrs {
		spanAttrs[a.Key] = a.Value
	}
	ctx, span := t.tracer.StartSpan(ctx, stage, WithAttributes(spanAttrs))

	t.log.Debug(ctx, "stage start", append([]logger.Attribute{logger.Attr("stage", stage)}, attrs...)...)
	return ctx, &StageSpan{trace: t, stage: stage, start: now, span: span, ctx: ctx}
}

// End records the end of the stage with its outcome.
func (s *StageSpan) End(err error, attrs ...logger.Attribute) {
	t := s.trace
	d := time.Since(s.start)
	t.record(Event{Kind: EventStageEnd, Stage: s.stage, Time: time.Now(), Duration: d, Err: err, Attrs: attrs})

	for _, a := range attrs {
		s.span.SetAttribute(a.Key, a.Value)
	}
	s.span.End(err)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		t.metrics.Counter(s.ctx, MetricStageErrors, 1, map[string]string{"stage": s.stage, "kind": ErrorKind(err)})
	}
	t.metrics.RecordDuration(s.ctx, MetricStageDuration, d, map[string]string{"stage": s.stage, "outcome": outcome})

	logAttrs := append([]logger.Attribute{
		logger.Attr("stage", s.stage),
		logger.Attr("duration_ms", d.Milliseconds()),
	}, attrs...)
	if err != nil {
		t.log.Warn(s.ctx, "stage failed", append(logAttrs, logger.Attr("error", err.Error()))...)
		return
	}
	t.log.Debug(s.ctx, "stage end", logAttrs...)
}

// Metrics returns the trace's metrics sink.
func (t *Trace) Metrics() MetricsProvider { return t.metrics }

// Events returns a copy of the recorded events in order.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.events)
}

// Stages returns the names of the stages started, in order.
func (t *Trace) Stages() []string {
	var out []string
	for _, e := range t.Events() {
		if e.Kind == EventStageStart {
			out = append(out, e.Stage)
		}
	}
	return out
}

func (t *Trace) record(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}
