package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/app"
	"github.com/toutaio/kubit/health"
)

// Namespaces bound by the provider. They are aliased as "Route" and "Server".
const (
	RouteNamespace  = "Kubit/Core/Route"
	ServerNamespace = "Kubit/Core/Server"
)

// Provider binds a chi router and the server that serves it. Boot mounts the
// health and metrics endpoints; Ready starts listening.
//
// Example config/http.yaml:
//
//	host: 0.0.0.0
//	port: 8080
//	readTimeout: 10s
//	healthPath: /health
//	metricsPath: /metrics
//
// Providers add routes during Boot:
//
//	router, err := kubit.Use[chi.Router](application.Container(), httpserver.RouteNamespace)
//	router.Get("/users", users.List)
type Provider struct{}

func (p *Provider) Name() string { return "http" }

// Register binds the router and the server as singletons.
func (p *Provider) Register(application *app.Application) error {
	container := application.Container()

	err := container.Singleton(RouteNamespace, func(r kubit.Resolver) (any, error) {
		return NewRouter(application), nil
	})
	if err != nil {
		return err
	}
	if err := container.RegisterType((*chi.Router)(nil), RouteNamespace); err != nil {
		return err
	}
	if err := container.Alias(RouteNamespace, "Route"); err != nil {
		return err
	}

	err = container.SingletonConstructor(ServerNamespace, func(router chi.Router) (*Server, error) {
		cfg, err := LoadConfig(application)
		if err != nil {
			return nil, err
		}
		return NewServer(cfg, router, application.Logger()), nil
	})
	if err != nil {
		return err
	}
	if err := container.RegisterType((*Server)(nil), ServerNamespace); err != nil {
		return err
	}
	return container.Alias(ServerNamespace, "Server")
}

// Boot mounts the liveness, readiness and metrics endpoints.
func (p *Provider) Boot(ctx context.Context, application *app.Application) error {
	router, err := kubit.Use[chi.Router](application.Container(), RouteNamespace)
	if err != nil {
		return err
	}

	tree := application.Config()
	healthPath := tree.String("http.healthPath", "/health")
	router.Get(healthPath+"/live", health.LivenessHandler())
	router.Get(healthPath+"/ready", health.ReadinessHandler(application.Health()))

	if metricsPath := tree.String("http.metricsPath", "/metrics"); metricsPath != "" {
		registry := application.Metrics().Registry()
		router.Method(http.MethodGet, metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			Registry: registry,
		}))
	}
	return nil
}

// Ready starts the server.
func (p *Provider) Ready(ctx context.Context, application *app.Application) error {
	server, err := kubit.Use[*Server](application.Container(), ServerNamespace)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

// Shutdown drains the server when it was started.
func (p *Provider) Shutdown(ctx context.Context, application *app.Application) error {
	container := application.Container()
	if !container.Resolved(ServerNamespace) {
		return nil
	}

	server, err := kubit.Use[*Server](container, ServerNamespace)
	if err != nil {
		return err
	}

	err = server.Shutdown(ctx)
	if errors.Is(err, ErrNotStarted) {
		return nil
	}
	return err
}

// NewRouter creates a router with the standard middleware stack: request
// ids, real client ips, panic recovery, request logging and a container
// scope per request.
func NewRouter(application *app.Application) chi.Router {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		RequestLogger(application.Logger()),
		RequestScope(application.Container(), application.Logger()),
	)
	return router
}

// LoadConfig reads the listener settings from the environment and the http
// config file.
func LoadConfig(application *app.Application) (Config, error) {
	var cfg Config
	if err := application.Env().Decode(&cfg); err != nil {
		return cfg, err
	}

	tree := application.Config()
	cfg.Host = tree.String("http.host", cfg.Host)
	cfg.Port = tree.Int("http.port", cfg.Port)
	cfg.ReadTimeout = tree.Duration("http.readTimeout", cfg.ReadTimeout)
	cfg.ReadHeaderTimeout = tree.Duration("http.readHeaderTimeout", cfg.ReadHeaderTimeout)
	cfg.WriteTimeout = tree.Duration("http.writeTimeout", cfg.WriteTimeout)
	cfg.IdleTimeout = tree.Duration("http.idleTimeout", cfg.IdleTimeout)
	cfg.MaxHeaderBytes = tree.Int("http.maxHeaderBytes", cfg.MaxHeaderBytes)
	return cfg, nil
}
