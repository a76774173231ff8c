package logger

import (
	"context"
	"errors"
	"log/slog"
)

// ContextExtractor derives an attribute from the context of a log call.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// handler fans records out to its sinks. Provider lifecycle attributes stored
// with WithProvider and WithPhase are added to every record, followed by the
// attributes of the extra extractors.
type handler struct {
	sinks      []slog.Handler
	extractors []ContextExtractor
}

func newHandler(sinks []slog.Handler, extractors []ContextExtractor) *handler {
	h := &handler{sinks: sinks}
	for _, extract := range extractors {
		if extract != nil {
			h.extractors = append(h.extractors, extract)
		}
	}
	return h
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards rec to every sink enabled for its level. A failing sink does
// not stop the others; their errors are joined.
func (h *handler) Handle(ctx context.Context, rec slog.Record) error {
	rec.AddAttrs(lifecycleAttrs(ctx)...)
	for _, extract := range h.extractors {
		if attr, ok := extract(ctx); ok {
			rec.AddAttrs(attr)
		}
	}

	if len(h.sinks) == 1 {
		return h.sinks[0].Handle(ctx, rec)
	}

	var errs []error
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, rec.Level) {
			errs = append(errs, sink.Handle(ctx, rec.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (h *handler) WithGroup(name string) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *handler) derive(fn func(slog.Handler) slog.Handler) *handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		sinks[i] = fn(sink)
	}
	return &handler{sinks: sinks, extractors: h.extractors}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
