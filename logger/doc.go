// Package logger builds the structured loggers used by Kubit applications.
//
// Records logged with a context prepared by WithProvider and WithPhase carry
// the provider and phase attributes. Extra ContextExtractors add request
// scoped attributes, and NewWithSentry fans records out to Sentry.
//
// # Basic Usage
//
//	log := logger.New(logger.Config{Level: "debug", Format: "text"})
//	ctx := logger.WithProvider(context.Background(), "RedisProvider")
//	log.InfoContext(ctx, "provider booted")
//	// time=... level=INFO msg="provider booted" provider=RedisProvider
//
// # Sentry Integration
//
// NewWithSentry sends errors to Sentry as issues and warnings as logs. With an
// empty DSN it falls back to the plain logger, so the same code path runs in
// development and production.
//
//	log := logger.NewWithSentry(logger.Config{}, logger.SentryConfig{
//		DSN:         os.Getenv("SENTRY_DSN"),
//		Environment: "production",
//		MinLevel:    slog.LevelWarn,
//	})
package logger
