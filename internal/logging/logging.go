package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the level, output and encoding of the process logger
type Config struct {
	Level  string
	Format string
	Writer io.Writer
}

// New builds a slog.Logger; JSON unless Format is "text"
func New(cfg Config) *slog.Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	options := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		handler = slog.NewTextHandler(writer, options)
	} else {
		handler = slog.NewJSONHandler(writer, options)
	}
	return slog.New(handler)
}

// WithApp tags every record with the owning app, e.g. "core"
func WithApp(logger *slog.Logger, app string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("app", app)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
