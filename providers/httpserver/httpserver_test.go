package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/app"
	"github.com/toutaio/kubit/app/apptest"
	"github.com/toutaio/kubit/providers/httpserver"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type requestSession struct {
	disposed bool
}

func (s *requestSession) Dispose() error {
	s.disposed = true
	return nil
}

func TestConfig_Address(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ":3333", httpserver.Config{Port: 3333}.Address())
	assert.Equal(t, "127.0.0.1:8080", httpserver.Config{Host: "127.0.0.1", Port: 8080}.Address())
}

func TestRequestScope(t *testing.T) {
	t.Parallel()

	container := kubit.New()
	require.NoError(t, container.Scoped("App/Session", func(kubit.Resolver) (any, error) {
		return &requestSession{}, nil
	}))

	var sessions []*requestSession
	handler := httpserver.RequestScope(container, discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := httpserver.ScopeFrom(r.Context())
		require.True(t, ok)

		first, err := kubit.Use[*requestSession](scope, "App/Session")
		require.NoError(t, err)
		second, err := kubit.Use[*requestSession](scope, "App/Session")
		require.NoError(t, err)
		assert.Same(t, first, second, "one session per request")

		sessions = append(sessions, first)
		w.WriteHeader(http.StatusNoContent)
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	require.Len(t, sessions, 2)
	assert.NotSame(t, sessions[0], sessions[1])
	assert.True(t, sessions[0].disposed)
	assert.True(t, sessions[1].disposed)
}

func TestScopeFrom_Missing(t *testing.T) {
	t.Parallel()

	_, ok := httpserver.ScopeFrom(context.Background())
	assert.False(t, ok)
}

func TestServer_StartShutdown(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	server := httpserver.NewServer(httpserver.Config{Host: "127.0.0.1", Port: 0}, mux, discard())
	assert.ErrorIs(t, server.Shutdown(context.Background()), httpserver.ErrNotStarted)

	require.NoError(t, server.Start(context.Background()))
	assert.ErrorIs(t, server.Start(context.Background()), httpserver.ErrAlreadyStarted)

	resp, err := http.Get("http://" + server.Addr() + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "pong", string(body))

	require.NoError(t, server.Shutdown(context.Background()))

	_, err = http.Get("http://" + server.Addr() + "/ping")
	assert.Error(t, err)
}

func TestServer_ListenError(t *testing.T) {
	t.Parallel()

	first := httpserver.NewServer(httpserver.Config{Host: "127.0.0.1", Port: 0}, http.NotFoundHandler(), discard())
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	_, port, err := splitPort(first.Addr())
	require.NoError(t, err)

	second := httpserver.NewServer(httpserver.Config{Host: "127.0.0.1", Port: port}, http.NotFoundHandler(), discard())
	assert.ErrorContains(t, second.Start(context.Background()), "listen on")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "4000")

	application := apptest.New(t, map[string]string{
		"http": "host: 127.0.0.1\nreadTimeout: 2s\n",
	})

	cfg, err := httpserver.LoadConfig(application)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4000", cfg.Address())
	assert.Equal(t, "2s", cfg.ReadTimeout.String())
	assert.Equal(t, "5s", cfg.ReadHeaderTimeout.String())
}

func TestProvider(t *testing.T) {
	application := apptest.Boot(t, map[string]string{
		"http": "host: 127.0.0.1\nport: 0\n",
	}, app.WithProviders(&httpserver.Provider{}))
	container := application.Container()

	router, err := kubit.Use[chi.Router](container, "Route")
	require.NoError(t, err)
	router.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello")
	})

	application.Health().Register("failing", func(context.Context) error {
		return errors.New("down")
	})

	require.NoError(t, application.Start(context.Background()))

	server, err := kubit.Use[*httpserver.Server](container, "Server")
	require.NoError(t, err)
	base := "http://" + server.Addr()

	resp, err := http.Get(base + "/hello")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Length"))
	_ = resp.Body.Close()

	resp, err = http.Get(base + "/health/live")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(base + "/health/ready?format=json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	_ = resp.Body.Close()
	assert.Equal(t, "unhealthy", payload["status"])

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "kubit_")

	require.NoError(t, application.Shutdown(context.Background()))
}

func TestProvider_ShutdownWithoutStart(t *testing.T) {
	application := apptest.Boot(t, nil, app.WithProviders(&httpserver.Provider{}))

	_, err := kubit.Use[*httpserver.Server](application.Container(), httpserver.ServerNamespace)
	require.NoError(t, err)
	assert.NoError(t, application.Shutdown(context.Background()))
}

func splitPort(addr string) (string, int, error) {
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portText)
	return host, port, err
}
