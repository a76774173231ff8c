// Package database provides the Kubit/Lucid/Database pgx pool and a scoped
// transaction binding.
package database

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/app"
)

const (
	// Namespace is where the pool is bound. It is aliased as "Database".
	Namespace = "Kubit/Lucid/Database"

	// TransactionNamespace is a scoped binding: one transaction per scope.
	TransactionNamespace = "Kubit/Lucid/Transaction"
)

// Provider binds a lazily connected *pgxpool.Pool.
//
// Example config/database.yaml:
//
//	url: ${DATABASE_URL}
//	maxOpenConns: 20
type Provider struct{}

func (p *Provider) Name() string { return "database" }

// Register binds the pool and the scoped transaction.
func (p *Provider) Register(application *app.Application) error {
	container := application.Container()

	err := container.Singleton(Namespace, func(r kubit.Resolver) (any, error) {
		cfg, err := LoadConfig(application)
		if err != nil {
			return nil, err
		}
		return Connect(context.Background(), cfg)
	})
	if err != nil {
		return err
	}
	if err := container.RegisterType((*pgxpool.Pool)(nil), Namespace); err != nil {
		return err
	}
	if err := container.Alias(Namespace, "Database"); err != nil {
		return err
	}

	err = container.ScopedConstructor(TransactionNamespace, func(ctx context.Context, pool *pgxpool.Pool) (*Transaction, error) {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return NewTransaction(tx), nil
	})
	if err != nil {
		return err
	}
	return container.Alias(TransactionNamespace, "Transaction")
}

// Boot registers the database health check.
func (p *Provider) Boot(ctx context.Context, application *app.Application) error {
	container := application.Container()

	application.Health().Register("database", func(ctx context.Context) error {
		if !container.Resolved(Namespace) {
			return probe(ctx, application)
		}
		pool, err := kubit.Use[*pgxpool.Pool](container, Namespace)
		if err != nil {
			return err
		}
		return Healthcheck(pool)(ctx)
	})
	return nil
}

// probe connects once within the deadline of ctx without opening the shared pool.
func probe(ctx context.Context, application *app.Application) error {
	cfg, err := LoadConfig(application)
	if err != nil {
		return err
	}
	cfg.RetryAttempts = 1
	cfg.MinConns = 0

	pool, err := Connect(ctx, cfg)
	if err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	pool.Close()
	return nil
}

// Shutdown closes the pool when it was ever opened.
func (p *Provider) Shutdown(ctx context.Context, application *app.Application) error {
	container := application.Container()
	if !container.Resolved(Namespace) {
		return nil
	}

	pool, err := kubit.Use[*pgxpool.Pool](container, Namespace)
	if err != nil {
		return err
	}

	application.Logger().InfoContext(ctx, "closing database pool", slog.String("namespace", Namespace))
	pool.Close()
	return nil
}

// LoadConfig reads the pool settings from the environment and the database
// config file.
func LoadConfig(application *app.Application) (Config, error) {
	var cfg Config
	if err := application.Env().Decode(&cfg); err != nil {
		return cfg, err
	}

	tree := application.Config()
	cfg.ConnectionString = tree.String("database.url", cfg.ConnectionString)
	cfg.HealthCheckPeriod = tree.Duration("database.healthCheckPeriod", cfg.HealthCheckPeriod)
	cfg.MaxConnIdleTime = tree.Duration("database.maxConnIdleTime", cfg.MaxConnIdleTime)
	cfg.MaxConnLifetime = tree.Duration("database.maxConnLifetime", cfg.MaxConnLifetime)
	cfg.RetryAttempts = tree.Int("database.retryAttempts", cfg.RetryAttempts)
	cfg.RetryInterval = tree.Duration("database.retryInterval", cfg.RetryInterval)
	cfg.MaxOpenConns = int32(tree.Int("database.maxOpenConns", int(cfg.MaxOpenConns)))
	cfg.MinConns = int32(tree.Int("database.minConns", int(cfg.MinConns)))
	return cfg, nil
}
