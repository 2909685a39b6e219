package calque

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestWrapErr(t *testing.T) {
	ctx := WithRequestID(WithTraceID(context.Background(), "trace-wrap"), "req-wrap")
	cause := errors.New("connection refused")

	err := WrapErr(ctx, cause, "query store").WithKind(ErrStoreUnavailable)

	if err.Message() != "query store" {
		t.Errorf("Message() = %q, want %q", err.Message(), "query store")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.TraceID() != "trace-wrap" || err.RequestID() != "req-wrap" {
		t.Errorf("ids = (%q, %q), want (trace-wrap, req-wrap)", err.TraceID(), err.RequestID())
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, want cause in message", err.Error())
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name     string
		err      error
		wantKind error
	}{
		{
			name:     "direct kind",
			err:      NewErr(ctx, "missing title").WithKind(ErrValidation),
			wantKind: ErrValidation,
		},
		{
			name:     "wrapped by fmt",
			err:      fmt.Errorf("retrieve: %w", WrapErr(ctx, context.DeadlineExceeded, "embed query").WithKind(ErrEmbeddingService)),
			wantKind: ErrEmbeddingService,
		},
		{
			name: "outermost kind wins",
			err: fmt.Errorf("retrieve: %w", WrapErr(ctx,
				WrapErr(ctx, errors.New("dimension mismatch: 2 vs 3"), "memory query").WithKind(ErrValidation),
				"query vector store").WithKind(ErrStoreUnavailable)),
			wantKind: ErrStoreUnavailable,
		},
		{
			name:     "kind below an untyped wrapper",
			err:      WrapErr(ctx, NewErr(ctx, "no title").WithKind(ErrValidation), "build"),
			wantKind: ErrValidation,
		},
		{
			name:     "bare sentinel",
			err:      fmt.Errorf("assemble: %w", ErrFormat),
			wantKind: ErrFormat,
		},
		{
			name:     "no kind",
			err:      NewErr(ctx, "plain"),
			wantKind: nil,
		},
		{
			name:     "nil",
			err:      nil,
			wantKind: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			if tt.wantKind != nil && !errors.Is(tt.err, tt.wantKind) {
				t.Errorf("errors.Is(err, %v) = false", tt.wantKind)
			}
		})
	}
}

func TestErrorIsByMessage(t *testing.T) {
	ctx := context.Background()
	a := NewErr(ctx, "same")
	b := NewErr(ctx, "same")
	c := NewErr(ctx, "other")

	if !errors.Is(a, b) {
		t.Error("errors with equal messages should match")
	}
	if errors.Is(a, c) {
		t.Error("errors with different messages should not match")
	}
}

func TestErrorLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(WithTraceID(context.Background(), "trace-log"), logger)

	NewErr(ctx, "completion failed").
		WithKind(ErrCompletionService).
		Tag(slog.String("model", "gpt-4o-mini")).
		Log(ctx)

	out := buf.String()
	for _, want := range []string{`"msg":"completion failed"`, `"kind":"completion service error"`, `"trace_id":"trace-log"`, `"model":"gpt-4o-mini"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}
