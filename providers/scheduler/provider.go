// Package scheduler provides the Kubit/Addons/Scheduler cron scheduler.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/app"
)

// Namespace is where the scheduler is bound. It is aliased as "Scheduler".
const Namespace = "Kubit/Addons/Scheduler"

// Provider binds a Scheduler, starts it once the application is ready and
// stops it on shutdown. Providers add tasks during Boot:
//
//	func (p *ReportsProvider) Boot(ctx context.Context, application *app.Application) error {
//	    s, err := kubit.Use[*scheduler.Scheduler](application.Container(), scheduler.Namespace)
//	    if err != nil {
//	        return err
//	    }
//	    return s.Schedule("reports:daily", "0 6 * * *", p.sendDailyReport)
//	}
//
// Set scheduler.enabled to false in config/scheduler.yaml to skip the provider,
// and scheduler.timezone to run schedules in another location.
type Provider struct{}

func (p *Provider) Name() string { return "scheduler" }

// ShouldRegister reports whether scheduler.enabled is on (the default).
func (p *Provider) ShouldRegister(application *app.Application) bool {
	return application.Config().Bool("scheduler.enabled", true)
}

// Register binds the scheduler as a singleton.
func (p *Provider) Register(application *app.Application) error {
	container := application.Container()

	err := container.Singleton(Namespace, func(r kubit.Resolver) (any, error) {
		location, err := time.LoadLocation(application.Config().String("scheduler.timezone", "UTC"))
		if err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
		return New(application.Logger(), location), nil
	})
	if err != nil {
		return err
	}

	if err := container.RegisterType((*Scheduler)(nil), Namespace); err != nil {
		return err
	}
	return container.Alias(Namespace, "Scheduler")
}

// Ready starts the scheduler.
func (p *Provider) Ready(ctx context.Context, application *app.Application) error {
	s, err := kubit.Use[*Scheduler](application.Container(), Namespace)
	if err != nil {
		return err
	}
	return s.Start()
}

// Shutdown stops the scheduler and waits for running tasks.
func (p *Provider) Shutdown(ctx context.Context, application *app.Application) error {
	container := application.Container()
	if !container.Resolved(Namespace) {
		return nil
	}

	s, err := kubit.Use[*Scheduler](container, Namespace)
	if err != nil {
		return err
	}
	return s.Stop(ctx)
}
