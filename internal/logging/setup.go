// Package logging builds the slog handlers luagate logs through: a
// charmbracelet/log text handler for terminals and a JSON handler for
// collectors.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// LevelTrace sits below the debug level far enough to let the script output
// levels debug2 through debug5 through.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a configured level name onto a slog level. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupHandlerText configures a text slog handler with the provided writer and log level
func SetupHandlerText(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stderr
	}

	lvl := ParseLevel(logLevel)
	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: lvl <= slog.LevelDebug,
		ReportCaller:    lvl <= LevelTrace,
		Level:           log.Level(lvl),
	})
}

// SetupHandlerJSON configures a JSON slog handler with the provided writer and log level
func SetupHandlerJSON(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stdout
	}

	lvl := ParseLevel(logLevel)
	return slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= LevelTrace,
	})
}

// SetupHandler picks the handler for format: "json", or text for anything else.
func SetupHandler(format, logLevel string, writer io.Writer) slog.Handler {
	if strings.EqualFold(format, "json") {
		return SetupHandlerJSON(logLevel, writer)
	}
	return SetupHandlerText(logLevel, writer)
}

// SetupLogger installs a text handler at logLevel as the slog default.
func SetupLogger(logLevel string) {
	slog.SetDefault(slog.New(SetupHandlerText(logLevel, nil)))
}
