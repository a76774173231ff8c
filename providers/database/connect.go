package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrEmptyConnectionURL       = errors.New("database: empty connection URL")
	ErrFailedToParseDBConfig    = errors.New("database: failed to parse database configuration")
	ErrFailedToOpenDBConnection = errors.New("database: failed to open database connection")
	ErrHealthcheckFailed        = errors.New("database: healthcheck failed")
)

// Config holds PostgreSQL pool settings. Environment variables provide the
// defaults; the database config file overrides them.
type Config struct {
	ConnectionString  string        `env:"DATABASE_URL"`
	HealthCheckPeriod time.Duration `env:"DATABASE_HEALTHCHECK_PERIOD,default=1m"`
	MaxConnIdleTime   time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME,default=10m"`
	MaxConnLifetime   time.Duration `env:"DATABASE_MAX_CONN_LIFETIME,default=30m"`
	RetryAttempts     int           `env:"DATABASE_RETRY_ATTEMPTS,default=3"`
	RetryInterval     time.Duration `env:"DATABASE_RETRY_INTERVAL,default=5s"`
	MaxOpenConns      int32         `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MinConns          int32         `env:"DATABASE_MIN_CONNS,default=2"`
}

// Connect opens a pool and pings it, retrying with a linear backoff.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	attempts := max(cfg.RetryAttempts, 1)
	for i := range attempts {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToOpenDBConnection, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}

	return nil, ErrFailedToOpenDBConnection
}

// Healthcheck returns a check that pings the pool.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil {
			return ErrHealthcheckFailed
		}
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

func parseConfig(cfg Config) (*pgxpool.Config, error) {
	if cfg.ConnectionString == "" {
		return nil, ErrEmptyConnectionURL
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	return poolConfig, nil
}
