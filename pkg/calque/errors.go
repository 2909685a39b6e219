package calque

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Error kinds raised by the answer pipeline.
//
// Every *Error may carry one kind; callers inspect it with errors.Is:
//
//	if errors.Is(err, calque.ErrEmbeddingService) { ... }
var (
	// ErrValidation marks malformed input: a record without title or id,
	// a non-positive k, a vector of the wrong dimension.
	ErrValidation = errors.New("validation error")

	// ErrEmbeddingService marks a failed or timed out embedding call.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrStoreUnavailable marks a vector store that cannot be reached or
	// that rejected a query.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCompletionService marks a failed language model call.
	ErrCompletionService = errors.New("completion service error")

	// ErrFormat marks an internal invariant violation such as a document
	// delimiter inside document content.
	ErrFormat = errors.New("format error")
)

var kinds = []error{ErrValidation, ErrEmbeddingService, ErrStoreUnavailable, ErrCompletionService, ErrFormat}

// Error is a context-aware error that carries a kind and metadata for
// logging and tracing.
//
// It supports errors.Is, errors.As and errors.Unwrap. The trace ID and
// request ID are captured from the context it was created with.
//
// Example:
//
//	return calque.WrapErr(ctx, err, "embed query").
//	    WithKind(calque.ErrEmbeddingService).
//	    Tag(slog.String("model", model))
type Error struct {
	msg       string
	cause     error
	kind      error
	traceID   string
	requestID string
	attrs     []slog.Attr
}

// WrapErr wraps an existing error with context metadata.
func WrapErr(ctx context.Context, err error, msg string) *Error {
	return &Error{
		msg:       msg,
		cause:     err,
		traceID:   TraceID(ctx),
		requestID: RequestID(ctx),
	}
}

// NewErr creates an error with context metadata and no cause.
//
// Example:
//
//	if rec.Title == "" {
//	    return calque.NewErr(ctx, "record has no title").WithKind(calque.ErrValidation)
//	}
func NewErr(ctx context.Context, msg string) *Error {
	return WrapErr(ctx, nil, msg)
}

// WithKind sets the error kind and returns the error for chaining.
func (e *Error) WithKind(kind error) *Error {
	e.kind = kind
	return e
}

// Kind returns the kind set on this error, or nil.
func (e *Error) Kind() error {
	return e.kind
}

// Tag adds a slog.Attr to the error. Returns the error for chaining.
func (e *Error) Tag(attr slog.Attr) *Error {
	e.attrs = append(e.attrs, attr)
	return e
}

// Tags adds multiple slog.Attr to the error.
func (e *Error) Tags(attrs ...slog.Attr) *Error {
	e.attrs = append(e.attrs, attrs...)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is this error's kind, or an *Error with the
// same message.
func (e *Error) Is(target error) bool {
	if e.kind != nil && target == e.kind {
		return true
	}
	if t, ok := target.(*Error); ok {
		return e.msg == t.msg
	}
	return false
}

// TraceID returns the trace ID captured when the error was created.
func (e *Error) TraceID() string {
	return e.traceID
}

// RequestID returns the request ID captured when the error was created.
func (e *Error) RequestID() string {
	return e.requestID
}

// Attrs returns the tags added with Tag and Tags.
func (e *Error) Attrs() []slog.Attr {
	return e.attrs
}

// Message returns the message without the cause.
func (e *Error) Message() string {
	return e.msg
}

// LogAttrs returns every attribute worth logging: cause, kind, trace_id,
// request_id and the tags.
func (e *Error) LogAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(e.attrs)+4)
	if e.cause != nil {
		attrs = append(attrs, slog.Any("error", e.cause))
	}
	if e.kind != nil {
		attrs = append(attrs, slog.String("kind", e.kind.Error()))
	}
	if e.traceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.traceID))
	}
	if e.requestID != "" {
		attrs = append(attrs, slog.String("request_id", e.requestID))
	}
	return append(attrs, e.attrs...)
}

// Log logs this error at error level with all metadata.
func (e *Error) Log(ctx context.Context) {
	e.LogWithLevel(ctx, slog.LevelError)
}

// LogWithLevel logs this error at the given level with all metadata.
func (e *Error) LogWithLevel(ctx context.Context, level slog.Level) {
	logger := Logger(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, e.msg, e.LogAttrs()...)
}

// KindOf returns the kind of the outermost *Error in err's chain that has
// one, so the stage that failed decides the kind even when its cause
// carries another. Errors without an *Error kind fall back to a bare kind
// sentinel anywhere in the chain, or nil.
//
// Example:
//
//	switch calque.KindOf(err) {
//	case calque.ErrValidation:
//	    status = http.StatusBadRequest
//	case calque.ErrStoreUnavailable:
//	    status = http.StatusServiceUnavailable
//	}
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for next := err; next != nil; {
		var e *Error
		if !errors.As(next, &e) {
			break
		}
		if e.kind != nil {
			return e.kind
		}
		next = e.cause
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
