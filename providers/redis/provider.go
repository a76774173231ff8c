// Package redis provides the Kubit/Addons/Redis binding backed by go-redis.
package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/app"
)

// Namespace is where the client is bound. It is aliased as "Redis".
const Namespace = "Kubit/Addons/Redis"

// Provider binds a lazily connected redis.UniversalClient.
//
// Example config/redis.yaml:
//
//	url: ${REDIS_URL}
//	poolSize: 20
//	retryAttempts: 5
type Provider struct{}

func (p *Provider) Name() string { return "redis" }

// Register binds the client as a singleton. The connection is opened on first use.
func (p *Provider) Register(application *app.Application) error {
	container := application.Container()

	err := container.Singleton(Namespace, func(r kubit.Resolver) (any, error) {
		cfg, err := LoadConfig(application)
		if err != nil {
			return nil, err
		}
		return Open(context.Background(), cfg)
	})
	if err != nil {
		return err
	}

	if err := container.RegisterType((*redis.UniversalClient)(nil), Namespace); err != nil {
		return err
	}
	return container.Alias(Namespace, "Redis")
}

// Boot registers the redis health check.
func (p *Provider) Boot(ctx context.Context, application *app.Application) error {
	container := application.Container()

	application.Health().Register("redis", func(ctx context.Context) error {
		if !container.Resolved(Namespace) {
			return probe(ctx, application)
		}
		client, err := kubit.Use[redis.UniversalClient](container, Namespace)
		if err != nil {
			return err
		}
		return Healthcheck(client)(ctx)
	})
	return nil
}

// probe dials once within the deadline of ctx. The singleton is left alone
// so a down server never holds a check past its deadline.
func probe(ctx context.Context, application *app.Application) error {
	cfg, err := LoadConfig(application)
	if err != nil {
		return err
	}
	cfg.RetryAttempts = 1

	client, err := Open(ctx, cfg)
	if err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return client.Close()
}

// Shutdown closes the client when it was ever opened.
func (p *Provider) Shutdown(ctx context.Context, application *app.Application) error {
	container := application.Container()
	if !container.Resolved(Namespace) {
		return nil
	}

	client, err := kubit.Use[redis.UniversalClient](container, Namespace)
	if err != nil {
		return err
	}

	application.Logger().InfoContext(ctx, "closing redis client", slog.String("namespace", Namespace))
	return client.Close()
}

// LoadConfig reads the connection settings from the environment and the
// redis config file.
func LoadConfig(application *app.Application) (Config, error) {
	var cfg Config
	if err := application.Env().Decode(&cfg); err != nil {
		return cfg, err
	}

	tree := application.Config()
	cfg.URL = tree.String("redis.url", cfg.URL)
	cfg.PoolSize = tree.Int("redis.poolSize", cfg.PoolSize)
	cfg.MinIdleConns = tree.Int("redis.minIdleConns", cfg.MinIdleConns)
	cfg.MaxIdleTime = tree.Duration("redis.maxIdleTime", cfg.MaxIdleTime)
	cfg.MaxActiveTime = tree.Duration("redis.maxActiveTime", cfg.MaxActiveTime)
	cfg.RetryAttempts = tree.Int("redis.retryAttempts", cfg.RetryAttempts)
	cfg.RetryInterval = tree.Duration("redis.retryInterval", cfg.RetryInterval)
	cfg.ReadTimeout = tree.Duration("redis.readTimeout", cfg.ReadTimeout)
	cfg.WriteTimeout = tree.Duration("redis.writeTimeout", cfg.WriteTimeout)
	cfg.DialTimeout = tree.Duration("redis.dialTimeout", cfg.DialTimeout)
	return cfg, nil
}
