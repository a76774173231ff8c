package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/app"
	"github.com/toutaio/kubit/app/apptest"
	"github.com/toutaio/kubit/health"
	"github.com/toutaio/kubit/providers/redis"
)

func TestOpen_InvalidURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want error
	}{
		{"empty", "", redis.ErrEmptyConnectionURL},
		{"wrong scheme", "http://localhost:6379", redis.ErrFailedToParseURL},
		{"malformed", "redis://localhost:notaport/0", redis.ErrFailedToParseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := redis.Open(context.Background(), redis.Config{URL: tt.url})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := redis.Open(ctx, redis.Config{
		URL:           "redis://127.0.0.1:1/0",
		RetryAttempts: 3,
		RetryInterval: time.Second,
		DialTimeout:   50 * time.Millisecond,
	})
	assert.ErrorIs(t, err, redis.ErrConnectionFailed)
}

func TestHealthcheck_NilClient(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, redis.Healthcheck(nil)(context.Background()), redis.ErrHealthcheckFailed)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://env:6379/0")
	t.Setenv("REDIS_POOL_SIZE", "")

	application := apptest.New(t, map[string]string{
		"redis": "poolSize: 32\nretryInterval: 250ms\n",
	})

	cfg, err := redis.LoadConfig(application)
	require.NoError(t, err)
	assert.Equal(t, "redis://env:6379/0", cfg.URL)
	assert.Equal(t, 32, cfg.PoolSize)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInterval)
	assert.Equal(t, 5, cfg.MinIdleConns)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
}

func TestProvider(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	application := apptest.Boot(t, map[string]string{"redis": "url: ''\n"},
		app.WithProviders(&redis.Provider{}),
	)
	container := application.Container()

	assert.True(t, container.IsSingleton(redis.Namespace))
	target, ok := container.GetAliasNamespace("Redis")
	require.True(t, ok)
	assert.Equal(t, redis.Namespace, target)

	_, err := container.Use("Redis")
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	assert.False(t, container.Resolved(redis.Namespace))

	assert.Contains(t, application.Health().Names(), "redis")
	assert.Equal(t, health.StatusUnhealthy, application.Health().Run(context.Background()).Status)

	assert.NoError(t, application.Shutdown(context.Background()), "unopened client is not closed")
}

func TestProvider_Fake(t *testing.T) {
	application := apptest.Boot(t, nil, app.WithProviders(&redis.Provider{}))
	container := application.Container()

	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, container.Fake(redis.Namespace, func(kubit.Resolver) (any, error) {
		return goredis.UniversalClient(client), nil
	}))

	resolved, err := kubit.Use[goredis.UniversalClient](container, "Redis")
	require.NoError(t, err)
	assert.Same(t, client, resolved)
}

func TestProvider_HealthCheckHonoursDeadline(t *testing.T) {
	application := apptest.Boot(t, map[string]string{
		"redis": "url: redis://127.0.0.1:1/0\nretryAttempts: 3\nretryInterval: 1s\ndialTimeout: 5s\n",
	}, app.WithProviders(&redis.Provider{}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := application.Health().Run(ctx)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.Contains(t, res.Checks["redis"].Error, redis.ErrHealthcheckFailed.Error())
	assert.False(t, application.Container().Resolved(redis.Namespace), "the check does not open the shared client")
}
