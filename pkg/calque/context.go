// Package calque carries the request-scoped plumbing shared by every stage of
// the answer pipeline: context values (logger, trace id, request id), the
// logging helpers built on them, a kind-tagged error type and the small
// Handler abstraction that lets a pipeline be driven from a byte stream.
package calque

import (
	"context"
	"log/slog"
)

type ctxKey string

const (
	loggerKey    ctxKey = "calque.logger"
	traceIDKey   ctxKey = "calque.trace_id"
	requestIDKey ctxKey = "calque.request_id"
)

// WithLogger stores a slog.Logger in the context.
//
// The logger is used by LogInfo, LogDebug, LogWarn, LogError and LogAttr.
// If no logger is set, slog.Default() is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	ctx = calque.WithLogger(ctx, logger)
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the context logger, or slog.Default() when none is set.
func Logger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithTraceID stores a trace ID in the context.
//
// The answer chain sets one per call so that every stage event, log line and
// error raised during the call can be correlated.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace ID from context, or "" if none is set.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores a request ID in the context.
//
// Outer surfaces (HTTP, MCP, CLI) set it once per inbound request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID from context, or "" if none is set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
