package logger

import (
	"context"
	"log/slog"
)

type lifecycleKey struct{}

// lifecycle names the provider hook a context belongs to.
type lifecycle struct {
	provider string
	phase    string
}

// WithProvider stores the name of the provider being run in ctx.
func WithProvider(ctx context.Context, provider string) context.Context {
	lc := lifecycleFrom(ctx)
	lc.provider = provider
	return context.WithValue(ctx, lifecycleKey{}, lc)
}

// WithPhase stores the lifecycle phase (register, boot, ready or shutdown) in ctx.
func WithPhase(ctx context.Context, phase string) context.Context {
	lc := lifecycleFrom(ctx)
	lc.phase = phase
	return context.WithValue(ctx, lifecycleKey{}, lc)
}

func lifecycleFrom(ctx context.Context) lifecycle {
	lc, _ := ctx.Value(lifecycleKey{}).(lifecycle)
	return lc
}

func lifecycleAttrs(ctx context.Context) []slog.Attr {
	lc := lifecycleFrom(ctx)

	var attrs []slog.Attr
	if lc.provider != "" {
		attrs = append(attrs, slog.String("provider", lc.provider))
	}
	if lc.phase != "" {
		attrs = append(attrs, slog.String("phase", lc.phase))
	}
	return attrs
}
