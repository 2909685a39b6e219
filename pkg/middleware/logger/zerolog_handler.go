package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// ZerologHandler is a slog.Handler that writes through zerolog, so code
// logging with slog (calque.LogInfo and friends) gets zerolog output.
type ZerologHandler struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	group  string
}

// NewZerologHandler wraps logger.
func NewZerologHandler(logger zerolog.Logger) *ZerologHandler {
	return &ZerologHandler{logger: logger}
}

// Enabled reports whether zerolog would emit level.
func (h *ZerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	zl := slogToZerolog(level)
	return zl >= h.logger.GetLevel() && zl >= zerolog.GlobalLevel()
}

// Handle writes r as one zerolog event.
func (h *ZerologHandler) Handle(_ context.Context, r slog.Record) error {
	evt := h.logger.WithLevel(slogToZerolog(r.Level))
	if evt == nil {
		return nil
	}
	for _, a := range h.attrs {
		evt = addAttr(evt, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		evt = addAttr(evt, h.group, a)
		return true
	})
	evt.Msg(r.Message)
	return nil
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *ZerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup prefixes later keys with name.
func (h *ZerologHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}

func addAttr(evt *zerolog.Event, group string, a slog.Attr) *zerolog.Event {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return evt
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		for _, ga := range a.Value.Group() {
			evt = addAttr(evt, key, ga)
		}
		return evt
	case slog.KindString:
		return evt.Str(key, a.Value.String())
	case slog.KindInt64:
		return evt.Int64(key, a.Value.Int64())
	case slog.KindUint64:
		return evt.Uint64(key, a.Value.Uint64())
	case slog.KindFloat64:
		return evt.Float64(key, a.Value.Float64())
	case slog.KindBool:
		return evt.Bool(key, a.Value.Bool())
	case slog.KindDuration:
		return evt.Dur(key, a.Value.Duration())
	case slog.KindTime:
		return evt.Time(key, a.Value.Time())
	}
	if err, ok := a.Value.Any().(error); ok {
		return evt.AnErr(key, err)
	}
	return evt.Interface(key, a.Value.Any())
}

func slogToZerolog(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
