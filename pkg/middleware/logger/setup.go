package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Supported output formats.
const (
	FormatConsole = "console" // zerolog console writer
	FormatJSON    = "json"    // zerolog JSON
	FormatSlog    = "slog"    // slog JSON handler
)

// Setup builds the process slog.Logger and the matching Adapter for the
// given format and level.
func Setup(w io.Writer, format, level string) (*slog.Logger, Adapter, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
			Level(logLevelToZerolog(lvl)).With().Timestamp().Logger()
		return slog.New(NewZerologHandler(zl)), NewZerologAdapter(zl), nil
	case FormatJSON:
		zl := zerolog.New(w).Level(logLevelToZerolog(lvl)).With().Timestamp().Logger()
		return slog.New(NewZerologHandler(zl)), NewZerologAdapter(zl), nil
	case FormatSlog:
		sl := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevelToSlog(lvl)}))
		return sl, NewSlogAdapter(sl), nil
	}
	return nil, nil, fmt.Errorf("unknown log format %q", format)
}
