package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestIDKey struct{}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_JSONWithExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	requestID := func(ctx context.Context) (slog.Attr, bool) {
		id, ok := ctx.Value(requestIDKey{}).(string)
		return slog.String("request_id", id), ok
	}
	log := New(Config{Level: "debug", Output: &buf}, requestID, nil)

	ctx := WithPhase(WithProvider(context.Background(), "RedisProvider"), "boot")
	ctx = context.WithValue(ctx, requestIDKey{}, "req-1")
	log.DebugContext(ctx, "provider booted", slog.Int("attempt", 1))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "provider booted", entry["msg"])
	assert.Equal(t, "RedisProvider", entry["provider"])
	assert.Equal(t, "boot", entry["phase"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.EqualValues(t, 1, entry["attempt"])
}

func TestNew_TextFormatAndLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text", Output: &buf})

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown", slog.String("namespace", "Kubit/Core/Logger"))
	assert.Contains(t, buf.String(), `msg=shown`)
	assert.Contains(t, buf.String(), `namespace=Kubit/Core/Logger`)
}

func TestHandler_WithAttrsKeepsLifecycle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Output: &buf}).With(slog.String("app", "kubit"))

	ctx := WithProvider(WithPhase(context.Background(), "ready"), "HttpProvider")
	log.InfoContext(ctx, "ready")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kubit", entry["app"])
	assert.Equal(t, "HttpProvider", entry["provider"])
	assert.Equal(t, "ready", entry["phase"], "WithProvider keeps the phase")

	buf.Reset()
	log.Info("plain")
	assert.NotContains(t, buf.String(), "provider")
}

type failingSink struct{ slog.Handler }

func (failingSink) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestHandler_FansOut(t *testing.T) {
	t.Parallel()

	var debugBuf, errorBuf bytes.Buffer
	h := newHandler([]slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}, nil)
	log := slog.New(h)

	log.DebugContext(WithProvider(context.Background(), "mail"), "debug message")
	log.Error("error message")

	assert.Contains(t, debugBuf.String(), "debug message")
	assert.Contains(t, debugBuf.String(), "provider=mail")
	assert.Contains(t, debugBuf.String(), "error message")
	assert.NotContains(t, errorBuf.String(), "debug message")
	assert.Contains(t, errorBuf.String(), "error message")
}

func TestHandler_SinkErrorsAreJoined(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newHandler([]slog.Handler{
		failingSink{slog.NewTextHandler(&buf, nil)},
		slog.NewTextHandler(&buf, nil),
	}, nil)

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "delivered", 0)
	assert.EqualError(t, h.Handle(context.Background(), rec), "sink down")
	assert.Contains(t, buf.String(), "delivered", "the healthy sink still writes")
}

func TestNewWithSentry_EmptyDSNFallsBack(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithSentry(Config{Output: &buf}, SentryConfig{})

	log.Error("boom")
	assert.Contains(t, buf.String(), "boom")
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
	assert.NotPanics(t, func() { log.Error("discarded") })
}
