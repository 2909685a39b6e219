// Package logger routes pipeline log events to zerolog or slog.
//
// An Adapter is the backend contract. Logger adds level helpers and a
// Timing wrapper for handlers. Setup builds the process logger from the
// configured format and level.
package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calque-ai/movierag/pkg/calque"
)

// LogLevel represents logging levels (Debug < Info < Warn < Error)
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts debug, info, warn or warning, and error.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Attribute represents a structured logging attribute for key-value pairs
type Attribute struct {
	Key   string
	Value any
}

// Attr creates an Attribute
func Attr(key string, value any) Attribute {
	return Attribute{Key: key, Value: value}
}

// Adapter defines the contract for logging backends
type Adapter interface {
	Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute)
	IsLevelEnabled(ctx context.Context, level LogLevel) bool
}

// Logger wraps an Adapter.
type Logger struct {
	backend Adapter
}

// New creates a Logger with a custom backend (zerolog, slog)
func New(backend Adapter) *Logger {
	return &Logger{backend: backend}
}

// Log writes one event if level is enabled.
func (l *Logger) Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute) {
	if l == nil || l.backend == nil {
		return
	}
	if l.backend.IsLevelEnabled(ctx, level) {
		l.backend.Log(ctx, level, msg, attrs...)
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, attrs ...Attribute) {
	l.Log(ctx, DebugLevel, msg, attrs...)
}

func (l *Logger) Info(ctx context.Context, msg string, attrs ...Attribute) {
	l.Log(ctx, InfoLevel, msg, attrs...)
}

func (l *Logger) Warn(ctx context.Context, msg string, attrs ...Attribute) {
	l.Log(ctx, WarnLevel, msg, attrs...)
}

func (l *Logger) Error(ctx context.Context, msg string, attrs ...Attribute) {
	l.Log(ctx, ErrorLevel, msg, attrs...)
}

// Timing wraps handler and logs its duration at level when it returns.
//
// Example:
//
//	h := log.Timing(logger.InfoLevel, "ask", rag.Handler(chain))
//	// Logs: [ask] completed duration_ms=150 error=<nil>
func (l *Logger) Timing(level LogLevel, prefix string, handler calque.Handler, attrs ...Attribute) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		start := time.Now()
		err := handler.ServeFlow(req, res)

		field, value := formatDuration(time.Since(start))
		all := make([]Attribute, 0, len(attrs)+2)
		all = append(all, attrs...)
		all = append(all, Attr(field, value))
		if err != nil {
			all = append(all, Attr("error", err.Error()))
		}

		ctx := req.Context
		if ctx == nil {
			ctx = context.Background()
		}
		l.Log(ctx, level, fmt.Sprintf("[%s] completed", prefix), all...)
		return err
	})
}

// formatDuration picks the unit that keeps the value readable.
func formatDuration(d time.Duration) (string, float64) {
	switch ms := d.Milliseconds(); {
	case ms < 10:
		return "duration_µs", float64(d.Microseconds())
	case ms >= 1000:
		return "duration_s", d.Seconds()
	default:
		return "duration_ms", float64(ms)
	}
}
