package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyConnectionURL = errors.New("redis: empty connection URL")
	ErrFailedToParseURL   = errors.New("redis: failed to parse connection URL")
	ErrConnectionFailed   = errors.New("redis: failed to establish connection")
	ErrHealthcheckFailed  = errors.New("redis: healthcheck failed")
)

// Config holds the connection settings. Environment variables provide the
// defaults; the redis config file overrides them.
type Config struct {
	URL           string        `env:"REDIS_URL"`
	PoolSize      int           `env:"REDIS_POOL_SIZE,default=10"`
	MinIdleConns  int           `env:"REDIS_MIN_IDLE_CONNS,default=5"`
	MaxIdleTime   time.Duration `env:"REDIS_MAX_IDLE_TIME,default=10m"`
	MaxActiveTime time.Duration `env:"REDIS_MAX_ACTIVE_TIME,default=30m"`
	RetryAttempts int           `env:"REDIS_RETRY_ATTEMPTS,default=3"`
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL,default=5s"`
	ReadTimeout   time.Duration `env:"REDIS_READ_TIMEOUT,default=3s"`
	WriteTimeout  time.Duration `env:"REDIS_WRITE_TIMEOUT,default=3s"`
	DialTimeout   time.Duration `env:"REDIS_DIAL_TIMEOUT,default=5s"`
}

// Open creates a Redis client and verifies it with a ping, retrying with a
// linear backoff. Supports both redis:// and rediss:// (TLS) URLs.
func Open(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	opts, err := parseOptions(cfg)
	if err != nil {
		return nil, err
	}

	attempts := max(cfg.RetryAttempts, 1)
	for i := range attempts {
		client := redis.NewClient(opts)

		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}

		_ = client.Close()

		if i == attempts-1 {
			break
		}
		if waitErr := wait(ctx, time.Duration(i+1)*cfg.RetryInterval); waitErr != nil {
			return nil, errors.Join(ErrConnectionFailed, waitErr)
		}
	}

	return nil, ErrConnectionFailed
}

// Healthcheck returns a check that pings the client.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return ErrHealthcheckFailed
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

func parseOptions(cfg Config) (*redis.Options, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyConnectionURL
	}
	if !strings.HasPrefix(cfg.URL, "redis://") && !strings.HasPrefix(cfg.URL, "rediss://") {
		return nil, ErrFailedToParseURL
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.ConnMaxIdleTime = cfg.MaxIdleTime
	opts.ConnMaxLifetime = cfg.MaxActiveTime
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.DialTimeout = cfg.DialTimeout
	return opts, nil
}

func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
