package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "app.yaml", `
name: kubit
appKey: ${APP_KEY}
http:
  port: 3333
  trustProxy: "true"
  timeout: 5s
`)
	writeConfig(t, dir, "database.yml", `
connection: pg
pg:
  url: postgres://${DB_USER}@localhost/kubit
  maxConns: "10"
`)
	writeConfig(t, dir, "notes.txt", "ignored")

	env := map[string]string{"APP_KEY": "averylongsecretkey", "DB_USER": "kubit"}
	cfg, err := Load(dir, func(key string) string { return env[key] })
	require.NoError(t, err)

	assert.Equal(t, []string{"app", "database"}, cfg.Keys())
	assert.Equal(t, "kubit", cfg.String("app.name", ""))
	assert.Equal(t, "averylongsecretkey", cfg.String("app.appKey", ""))
	assert.Equal(t, 3333, cfg.Int("app.http.port", 0))
	assert.True(t, cfg.Bool("app.http.trustProxy", false))
	assert.Equal(t, 5*time.Second, cfg.Duration("app.http.timeout", 0))
	assert.Equal(t, "postgres://kubit@localhost/kubit", cfg.String("database.pg.url", ""))
	assert.Equal(t, 10, cfg.Int("database.pg.maxConns", 0))
}

func TestLoad_MissingDir(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.All())
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "broken.yaml", "key: [unclosed")

	_, err := Load(dir, nil)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(dir, "broken.yaml"), loadErr.Path)
}

func TestGetDefaults(t *testing.T) {
	t.Parallel()

	cfg := New(map[string]any{"app": map[string]any{"name": "kubit", "port": "abc"}})

	assert.Equal(t, "fallback", cfg.Get("app.missing", "fallback"))
	assert.Equal(t, "fallback", cfg.Get("app.name.deeper", "fallback"))
	assert.Equal(t, 8080, cfg.Int("app.port", 8080))
	assert.Equal(t, time.Minute, cfg.Duration("app.timeout", time.Minute))
	assert.False(t, cfg.Has(""))
	assert.True(t, cfg.Has("app.name"))
}

func TestDurationMilliseconds(t *testing.T) {
	t.Parallel()

	cfg := New(map[string]any{"cache": map[string]any{"ttl": 1500}})
	assert.Equal(t, 1500*time.Millisecond, cfg.Duration("cache.ttl", 0))
}

func TestSet(t *testing.T) {
	t.Parallel()

	cfg := New(nil)
	cfg.Set("redis.connections.main.host", "localhost")
	cfg.Set("redis.connection", "main")

	assert.Equal(t, "localhost", cfg.String("redis.connections.main.host", ""))
	assert.Equal(t, "main", cfg.String("redis.connection", ""))
}

func TestMergeAndDefaults(t *testing.T) {
	t.Parallel()

	cfg := New(map[string]any{
		"redis": map[string]any{
			"host": "cache.internal",
			"pool": map[string]any{"size": 20},
		},
	})

	defaults := map[string]any{
		"host": "localhost",
		"port": 6379,
		"pool": map[string]any{"size": 10, "minIdle": 2},
	}

	merged := cfg.Merge("redis", defaults)
	assert.Equal(t, "cache.internal", merged["host"])
	assert.Equal(t, 6379, merged["port"])
	assert.Equal(t, map[string]any{"size": 20, "minIdle": 2}, merged["pool"])
	assert.False(t, cfg.Has("redis.port"), "Merge must not write")
	assert.Equal(t, 10, defaults["pool"].(map[string]any)["size"], "Merge must not mutate defaults")

	cfg.Defaults("redis", defaults)
	assert.Equal(t, 6379, cfg.Int("redis.port", 0))
	assert.Equal(t, 20, cfg.Int("redis.pool.size", 0))
}

func TestAllIsCopy(t *testing.T) {
	t.Parallel()

	cfg := New(map[string]any{"app": map[string]any{"name": "kubit"}})
	all := cfg.All()
	all["app"].(map[string]any)["name"] = "changed"

	assert.Equal(t, "kubit", cfg.String("app.name", ""))
}

func TestStringSlice(t *testing.T) {
	t.Parallel()

	cfg := New(map[string]any{"cors": map[string]any{"origins": []any{"a.com", "b.com"}}})
	assert.Equal(t, []string{"a.com", "b.com"}, cfg.StringSlice("cors.origins"))
	assert.Nil(t, cfg.StringSlice("cors.missing"))
}
