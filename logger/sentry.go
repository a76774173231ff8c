package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `yaml:"dsn" env:"SENTRY_DSN"`
	Environment string `yaml:"environment" env:"SENTRY_ENVIRONMENT,default=production"`
	Release     string `yaml:"release" env:"SENTRY_RELEASE"`

	// MinLevel selects the levels stored as Sentry logs: warn (default) or error.
	MinLevel slog.Level `yaml:"-"`
}

// NewWithSentry creates a logger that writes to cfg's output and to Sentry.
// With an empty DSN, or when the SDK fails to initialise, only the base
// handler is used.
func NewWithSentry(cfg Config, sentryCfg SentryConfig, extractors ...ContextExtractor) *slog.Logger {
	base := newSink(cfg)
	if sentryCfg.DSN == "" {
		return slog.New(newHandler([]slog.Handler{base}, extractors))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         sentryCfg.DSN,
		Environment: sentryCfg.Environment,
		Release:     sentryCfg.Release,
		EnableLogs:  true,
	}); err != nil {
		slog.New(base).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		return slog.New(newHandler([]slog.Handler{base}, extractors))
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if sentryCfg.MinLevel >= slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())

	return slog.New(newHandler([]slog.Handler{base, sentryHandler}, extractors))
}

// FlushSentry waits up to timeout for buffered Sentry events to be sent.
// It reports false when the timeout was reached first.
func FlushSentry(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
