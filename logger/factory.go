package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the handler built by New.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level" env:"LOG_LEVEL"`

	// Format is json or text. Defaults to json.
	Format string `yaml:"format" env:"LOG_FORMAT"`

	// Output defaults to os.Stdout.
	Output io.Writer `yaml:"-"`
}

// New creates a logger writing to cfg's output. Records carry the provider
// lifecycle attributes of their context plus those of extractors.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return slog.New(newHandler([]slog.Handler{newSink(cfg)}, extractors))
}

func newSink(cfg Config) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
