package logger

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/calque-ai/movierag/pkg/calque"
)

// ZerologAdapter adapts zerolog.Logger to Adapter. Trace and request ids
// found in the context are added to every event.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new adapter for zerolog
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log implements Adapter.
func (z *ZerologAdapter) Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute) {
	evt := z.logger.WithLevel(logLevelToZerolog(level))
	if evt == nil {
		return
	}

	if id := calque.TraceID(ctx); id != "" {
		evt = evt.Str("trace_id", id)
	}
	if id := calque.RequestID(ctx); id != "" {
		evt = evt.Str("request_id", id)
	}
	for _, attr := range attrs {
		evt = evt.Interface(attr.Key, attr.Value)
	}
	evt.Msg(msg)
}

// IsLevelEnabled checks if the given level is enabled in zerolog
func (z *ZerologAdapter) IsLevelEnabled(_ context.Context, level LogLevel) bool {
	zl := logLevelToZerolog(level)
	return zl >= z.logger.GetLevel() && zl >= zerolog.GlobalLevel()
}

func logLevelToZerolog(level LogLevel) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
