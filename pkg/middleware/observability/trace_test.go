package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/logger"
)

func TestTraceRecordsStages(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tracer := NewInMemoryTracerProvider()
	metrics := NewInMemoryMetricsProvider()
	log := logger.New(logger.NewZerologAdapter(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	tr := NewTrace(WithTraceID("t-1"), WithTracer(tracer), WithMetrics(metrics), WithTraceLogger(log))
	ctx := tr.Context(context.Background())
	if calque.TraceID(ctx) != "t-1" {
		t.Fatalf("TraceID = %q", calque.TraceID(ctx))
	}

	_, s := tr.Start(ctx, "retrieving", logger.Attr("k", 4))
	s.End(nil, logger.Attr("matches", 1))
	_, s = tr.Start(ctx, "completing")
	s.End(calque.NewErr(ctx, "rate limited").WithKind(calque.ErrCompletionService))

	if got := strings.Join(tr.Stages(), ","); got != "retrieving,completing" {
		t.Errorf("Stages() = %q", got)
	}
	events := tr.Events()
	if len(events) != 4 || events[3].Kind != EventStageEnd || events[3].Err == nil {
		t.Fatalf("events = %+v", events)
	}

	spans := tracer.GetSpans()
	if len(spans) != 2 || spans[0].Attributes["k"] != 4 || spans[0].Attributes["matches"] != 1 {
		t.Errorf("spans = %+v", spans)
	}
	if spans[1].Status != SpanStatusError {
		t.Errorf("failed stage span status = %v", spans[1].Status)
	}

	if n := len(metrics.GetHistogram(MetricStageDuration, map[string]string{"stage": "retrieving", "outcome": "ok"})); n != 1 {
		t.Errorf("retrieving duration observations = %d", n)
	}
	if n := metrics.GetCounter(MetricStageErrors, map[string]string{"stage": "completing", "kind": "completion_service"}); n != 1 {
		t.Errorf("completing errors = %d", n)
	}

	out := buf.String()
	for _, want := range []string{`"message":"stage start"`, `"message":"stage failed"`, `"trace_id":"t-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestTraceWithoutSinks(t *testing.T) {
	t.Parallel()

	tr := NewTrace()
	if tr.ID == "" {
		t.Fatal("trace id should be generated")
	}
	_, s := tr.Start(context.Background(), "extracting")
	s.End(errors.New("x"))
	if len(tr.Events()) != 2 {
		t.Errorf("events = %d", len(tr.Events()))
	}
}

func TestInMemoryTracerParenting(t *testing.T) {
	t.Parallel()

	p := NewInMemoryTracerProvider()
	ctx, parent := p.StartSpan(context.Background(), "answer")
	_, child := p.StartSpan(ctx, "retrieving")
	child.End(nil)
	parent.End(nil)

	spans := p.GetSpans()
	if len(spans) != 2 || spans[0].TraceID != spans[1].TraceID || spans[0].ParentID != spans[1].SpanID {
		t.Errorf("child not linked to parent: %+v %+v", spans[0], spans[1])
	}
	if len(p.GetSpansByName("answer")) != 1 {
		t.Error("GetSpansByName(answer) should find one span")
	}
}
