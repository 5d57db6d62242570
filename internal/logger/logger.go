package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs a JSON handler on stderr as the default logger. An empty
// level falls back to LOG_LEVEL, then info.
func Init(level string) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	slog.SetDefault(New(os.Stderr, ParseLevel(level)))
}

func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
