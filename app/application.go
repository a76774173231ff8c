// Package app implements the Kubit application: environment and config
// loading, the provider lifecycle and the process run loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/config"
	"github.com/toutaio/kubit/env"
	"github.com/toutaio/kubit/health"
	"github.com/toutaio/kubit/logger"
	"github.com/toutaio/kubit/metrics"
)

// Core namespaces bound by Setup.
const (
	ApplicationNamespace = "Kubit/Core/Application"
	ConfigNamespace      = "Kubit/Core/Config"
	EnvNamespace         = "Kubit/Core/Env"
	LoggerNamespace      = "Kubit/Core/Logger"
	MetricsNamespace     = "Kubit/Core/Metrics"
	HealthNamespace      = "Kubit/Core/Health"
)

// MinAppKeyLength is the shortest app key Setup accepts.
const MinAppKeyLength = 16

// DefaultShutdownTimeout bounds Shutdown when Run stops.
const DefaultShutdownTimeout = 30 * time.Second

const sentryFlushTimeout = 2 * time.Second

// Environment is the kind of process the application runs in.
type Environment string

const (
	EnvironmentWeb     Environment = "web"
	EnvironmentConsole Environment = "console"
	EnvironmentTest    Environment = "test"
	EnvironmentRepl    Environment = "repl"
	EnvironmentUnknown Environment = "unknown"
)

// ParseEnvironment maps a name to an Environment; unknown names map to EnvironmentUnknown.
func ParseEnvironment(name string) Environment {
	switch env := Environment(strings.ToLower(strings.TrimSpace(name))); env {
	case EnvironmentWeb, EnvironmentConsole, EnvironmentTest, EnvironmentRepl:
		return env
	default:
		return EnvironmentUnknown
	}
}

// State is the lifecycle state of an application.
type State int

const (
	StateUnknown State = iota
	StateInitiated
	StateSetup
	StateRegistered
	StateBooted
	StateReady
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateSetup:
		return "setup"
	case StateRegistered:
		return "registered"
	case StateBooted:
		return "booted"
	case StateReady:
		return "ready"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Option configures an Application.
type Option func(*Application)

// WithEnvironment sets the environment. The default is read from KUBIT_ENV,
// falling back to web.
func WithEnvironment(environment Environment) Option {
	return func(a *Application) {
		a.environment = environment
	}
}

// WithProviders queues providers for registration.
func WithProviders(providers ...Provider) Option {
	return func(a *Application) {
		a.providers = append(a.providers, providers...)
	}
}

// WithLogOutput sets where the default logger writes.
func WithLogOutput(w io.Writer) Option {
	return func(a *Application) {
		a.logOutput = w
	}
}

// WithMetrics uses collector instead of a fresh one.
func WithMetrics(collector *metrics.Collector) Option {
	return func(a *Application) {
		a.metrics = collector
	}
}

// WithShutdownTimeout bounds the shutdown phase of Run.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(a *Application) {
		a.shutdownTimeout = timeout
	}
}

// WithoutAppKey skips app key validation, for tooling that runs before a key exists.
func WithoutAppKey() Option {
	return func(a *Application) {
		a.appKeyOptional = true
	}
}

// Application owns the container and drives providers through
// setup, register, boot, ready and shutdown.
type Application struct {
	root            string
	id              uuid.UUID
	environment     Environment
	providers       []Provider
	logOutput       io.Writer
	shutdownTimeout time.Duration
	appKeyOptional  bool

	container *kubit.Ioc
	registrar *Registrar
	config    *config.Config
	env       *env.Env
	logger    *slog.Logger
	metrics   *metrics.Collector
	health    *health.Registry
	sentry    bool

	mu    sync.RWMutex
	state State

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates an application rooted at root.
//
// Example:
//
//	application, err := app.New(".", app.WithProviders(&redis.Provider{}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
func New(root string, opts ...Option) (*Application, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve application root: %w", err)
	}

	a := &Application{
		root:            abs,
		id:              uuid.New(),
		environment:     ParseEnvironment(os.Getenv("KUBIT_ENV")),
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          logger.Discard(),
		state:           StateInitiated,
		stop:            make(chan struct{}),
	}
	if a.environment == EnvironmentUnknown && os.Getenv("KUBIT_ENV") == "" {
		a.environment = EnvironmentWeb
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = metrics.NewCollector("kubit")
	}

	a.registrar = NewRegistrar(a)
	a.metrics.RecordAppState(int(StateInitiated))
	return a, nil
}

// Setup loads .env files and config, validates the app key, builds the logger
// and the container, and binds the core namespaces.
func (a *Application) Setup(ctx context.Context) error {
	if err := a.expect(StateInitiated); err != nil {
		return err
	}

	envFiles := []string{filepath.Join(a.root, ".env")}
	if a.environment == EnvironmentTest {
		envFiles = slices.Insert(envFiles, 0, filepath.Join(a.root, ".env.test"))
	}
	e, err := env.Process(envFiles...)
	if err != nil {
		return err
	}

	cfg, err := config.Load(a.ConfigPath(), e.Lookup)
	if err != nil {
		return err
	}

	if !a.appKeyOptional {
		if err := ValidateAppKey(cfg.String("app.appKey", e.Get("APP_KEY", ""))); err != nil {
			return err
		}
	}

	sentryCfg := logger.SentryConfig{
		DSN:         cfg.String("logger.sentry.dsn", e.Get("SENTRY_DSN", "")),
		Environment: cfg.String("logger.sentry.environment", e.Get("SENTRY_ENVIRONMENT", string(a.environment))),
		Release:     cfg.String("logger.sentry.release", e.Get("SENTRY_RELEASE", "")),
		MinLevel:    logger.ParseLevel(cfg.String("logger.sentry.level", "warn")),
	}
	log := logger.NewWithSentry(logger.Config{
		Level:  cfg.String("logger.level", e.Get("LOG_LEVEL", "info")),
		Format: cfg.String("logger.format", e.Get("LOG_FORMAT", "json")),
		Output: a.logOutput,
	}, sentryCfg).With(
		slog.String("app_id", a.id.String()),
		slog.String("environment", string(a.environment)),
	)

	container := kubit.New(kubit.WithLogger(log), kubit.WithMetrics(a.metrics))
	if a.environment == EnvironmentTest {
		container.UseProxies(true)
	}

	a.mu.Lock()
	a.env = e
	a.config = cfg
	a.logger = log
	a.sentry = sentryCfg.DSN != ""
	a.container = container
	a.health = health.NewRegistry(health.WithLogger(log))
	a.mu.Unlock()

	if err := a.bindCore(); err != nil {
		return err
	}

	a.registrar.UseProviders(a.providers...)
	a.setState(StateSetup)
	log.InfoContext(ctx, "application setup", slog.String("root", a.root))
	return nil
}

func (a *Application) bindCore() error {
	bindings := []struct {
		namespace string
		alias     string
		value     any
	}{
		{ApplicationNamespace, "Application", a},
		{ConfigNamespace, "Config", a.config},
		{EnvNamespace, "Env", a.env},
		{LoggerNamespace, "Logger", a.logger},
		{MetricsNamespace, "Metrics", a.metrics},
		{HealthNamespace, "Health", a.health},
	}

	for _, b := range bindings {
		if err := a.container.Instance(b.namespace, b.value); err != nil {
			return err
		}
		if err := a.container.Alias(b.namespace, b.alias); err != nil {
			return err
		}
		if err := a.container.RegisterType(b.value, b.namespace); err != nil {
			return err
		}
	}
	return nil
}

// RegisterProviders runs the register phase.
func (a *Application) RegisterProviders(ctx context.Context) error {
	if err := a.expect(StateSetup); err != nil {
		return err
	}
	if err := a.registrar.Register(ctx); err != nil {
		return err
	}

	a.setState(StateRegistered)
	a.Logger().InfoContext(ctx, "providers registered")
	return nil
}

// BootProviders runs the boot phase.
func (a *Application) BootProviders(ctx context.Context) error {
	if err := a.expect(StateRegistered); err != nil {
		return err
	}
	if err := a.registrar.Boot(ctx); err != nil {
		return err
	}

	a.setState(StateBooted)
	a.Logger().InfoContext(ctx, "providers booted")
	return nil
}

// Start runs the ready hooks.
func (a *Application) Start(ctx context.Context) error {
	if err := a.expect(StateBooted); err != nil {
		return err
	}
	if err := a.registrar.Ready(ctx); err != nil {
		return err
	}

	a.setState(StateReady)
	a.Logger().InfoContext(ctx, "application ready")
	return nil
}

// Shutdown runs the shutdown hooks. It is valid from any state after Setup.
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.expect(StateSetup, StateRegistered, StateBooted, StateReady); err != nil {
		return err
	}

	err := a.registrar.Shutdown(ctx)
	a.setState(StateShutdown)
	a.Logger().InfoContext(ctx, "application shutdown", slog.Bool("clean", err == nil))

	if a.sentry {
		logger.FlushSentry(sentryFlushTimeout)
	}
	return err
}

// Boot runs Setup, RegisterProviders and BootProviders, skipping phases that
// already ran. Ace commands use it to get a booted container without Start.
func (a *Application) Boot(ctx context.Context) error {
	steps := []struct {
		from State
		run  func(context.Context) error
	}{
		{StateInitiated, a.Setup},
		{StateSetup, a.RegisterProviders},
		{StateRegistered, a.BootProviders},
	}

	for _, step := range steps {
		if a.State() == step.from {
			if err := step.run(ctx); err != nil {
				return err
			}
		}
	}

	if a.State() != StateBooted {
		return fmt.Errorf("%w: cannot boot from %s", ErrInvalidState, a.State())
	}
	return nil
}

// Run boots and starts the application, blocks until ctx is done, SIGINT or
// SIGTERM arrives, or Stop is called, then shuts down within the shutdown timeout.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Boot(ctx); err != nil {
		return a.abort(ctx, err)
	}
	if err := a.Start(ctx); err != nil {
		return a.abort(ctx, err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case <-a.stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// abort shuts down after a failed startup and reports both failures.
func (a *Application) abort(ctx context.Context, err error) error {
	if a.State() < StateSetup {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer cancel()
	return errors.Join(err, a.Shutdown(shutdownCtx))
}

// Stop makes Run return. Safe to call more than once.
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		close(a.stop)
	})
}

// ID returns the instance id attached to every log line.
func (a *Application) ID() uuid.UUID { return a.id }

// Root returns the absolute application root.
func (a *Application) Root() string { return a.root }

// ConfigPath returns the directory config files are loaded from.
func (a *Application) ConfigPath() string { return filepath.Join(a.root, "config") }

// Environment returns the process environment kind.
func (a *Application) Environment() Environment { return a.environment }

// Registrar returns the provider registrar.
func (a *Application) Registrar() *Registrar { return a.registrar }

// Metrics returns the metrics collector.
func (a *Application) Metrics() *metrics.Collector { return a.metrics }

// Container returns the IoC container. It is nil before Setup.
func (a *Application) Container() *kubit.Ioc {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.container
}

// Config returns the config tree. It is nil before Setup.
func (a *Application) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// Env returns the environment reader. It is nil before Setup.
func (a *Application) Env() *env.Env {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.env
}

// Health returns the health check registry. It is nil before Setup.
func (a *Application) Health() *health.Registry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.health
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

// UseLogger replaces the application logger and rebinds Kubit/Core/Logger.
func (a *Application) UseLogger(log *slog.Logger) error {
	if log == nil {
		return errors.New("logger cannot be nil")
	}

	a.mu.Lock()
	a.logger = log
	container := a.container
	a.mu.Unlock()

	if container == nil {
		return nil
	}
	return container.Instance(LoggerNamespace, log)
}

// State returns the current lifecycle state.
func (a *Application) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// IsReady reports whether the ready hooks have run.
func (a *Application) IsReady() bool { return a.State() == StateReady }

// IsShuttingDown reports whether Shutdown has run.
func (a *Application) IsShuttingDown() bool { return a.State() == StateShutdown }

func (a *Application) expect(allowed ...State) error {
	if current := a.State(); !slices.Contains(allowed, current) {
		return fmt.Errorf("%w: unexpected state %s", ErrInvalidState, current)
	}
	return nil
}

func (a *Application) setState(state State) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.metrics.RecordAppState(int(state))
}

// ValidateAppKey checks that key is present and long enough.
func ValidateAppKey(key string) error {
	switch {
	case key == "":
		return MissingAppKey()
	case len(key) < MinAppKeyLength:
		return InvalidAppKey()
	default:
		return nil
	}
}
