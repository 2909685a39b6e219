package calque

import (
	"context"
	"log/slog"
)

// LogInfo logs an info-level message with context metadata.
//
// trace_id and request_id are appended when present in the context. The
// level check happens before any argument is assembled.
//
// Example:
//
//	calque.LogInfo(ctx, "ingestion finished", "upserted", n)
func LogInfo(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

// LogDebug logs a debug-level message with context metadata.
func LogDebug(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

// LogWarn logs a warning-level message with context metadata.
//
// Example:
//
//	calque.LogWarn(ctx, "answer has no SOURCE label", "model", model)
func LogWarn(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

// LogError logs an error-level message with context metadata.
//
// err is attached under the "error" key when non-nil.
func LogError(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err)
	}
	logAt(ctx, slog.LevelError, msg, args)
}

func logAt(ctx context.Context, level slog.Level, msg string, args []any) {
	logger := Logger(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, appendContextFields(ctx, args)...)
}

func appendContextFields(ctx context.Context, args []any) []any {
	if traceID := TraceID(ctx); traceID != "" {
		args = append(args, "trace_id", traceID)
	}
	if requestID := RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	return args
}

// LogWith returns the context logger with trace_id, request_id and args
// pre-attached.
//
// Example:
//
//	logger := calque.LogWith(ctx, "component", "ingest")
//	logger.Info("batch upserted", "size", len(batch))
func LogWith(ctx context.Context, args ...any) *slog.Logger {
	return Logger(ctx).With(appendContextFields(ctx, args)...)
}

// LogAttr logs typed attributes at the given level.
//
// Example:
//
//	calque.LogAttr(ctx, slog.LevelWarn, "prompt truncated",
//	    slog.Int("kept", kept),
//	    slog.Int("dropped", dropped),
//	)
func LogAttr(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	logger := Logger(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	if traceID := TraceID(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if requestID := RequestID(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	logger.LogAttrs(ctx, level, msg, attrs...)
}

// LogInfoAttr logs info-level with slog.Attr.
func LogInfoAttr(ctx context.Context, msg string, attrs ...slog.Attr) {
	LogAttr(ctx, slog.LevelInfo, msg, attrs...)
}

// LogDebugAttr logs debug-level with slog.Attr.
func LogDebugAttr(ctx context.Context, msg string, attrs ...slog.Attr) {
	LogAttr(ctx, slog.LevelDebug, msg, attrs...)
}

// LogWarnAttr logs warn-level with slog.Attr.
func LogWarnAttr(ctx context.Context, msg string, attrs ...slog.Attr) {
	LogAttr(ctx, slog.LevelWarn, msg, attrs...)
}

// LogErrorAttr logs error-level with slog.Attr.
//
// Include the error itself as slog.Any("error", err).
func LogErrorAttr(ctx context.Context, msg string, attrs ...slog.Attr) {
	LogAttr(ctx, slog.LevelError, msg, attrs...)
}
