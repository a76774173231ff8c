package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/logger"
)

const (
	phaseRegister = "register"
	phaseBoot     = "boot"
	phaseReady    = "ready"
	phaseShutdown = "shutdown"
)

// providerEntry tracks a provider through its lifecycle.
type providerEntry struct {
	provider Provider
	name     string
	provides []string

	registered bool
	booted     bool
	readied    bool

	// deferred providers load at most once; err keeps the outcome.
	loading bool
	loaded  bool
	err     error
}

// ProviderInfo describes a provider for introspection.
type ProviderInfo struct {
	Name       string
	Deferred   bool
	Provides   []string
	Registered bool
	Booted     bool
}

// Registrar runs provider lifecycle hooks in order.
type Registrar struct {
	app *Application

	mu       sync.Mutex
	pending  []*providerEntry
	active   []*providerEntry
	deferred map[string]*providerEntry
	seen     map[reflect.Type]bool
	trapped  bool
	started  bool
}

// NewRegistrar creates a registrar for app.
func NewRegistrar(app *Application) *Registrar {
	return &Registrar{
		app:      app,
		deferred: make(map[string]*providerEntry),
		seen:     make(map[reflect.Type]bool),
	}
}

// UseProviders queues providers for registration. A provider whose type was
// already queued is ignored.
func (r *Registrar) UseProviders(providers ...Provider) *Registrar {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range providers {
		if p == nil {
			continue
		}

		typ := reflect.TypeOf(p)
		if r.seen[typ] {
			continue
		}
		r.seen[typ] = true

		entry := &providerEntry{provider: p, name: ProviderName(p)}
		if deferred, ok := p.(Deferred); ok {
			entry.provides = deferred.Provides()
		}
		r.pending = append(r.pending, entry)
	}
	return r
}

// Register runs Register on queued providers in order and stops at the first
// error. Deferred providers are parked until one of their namespaces is used.
func (r *Registrar) Register(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, entry := range pending {
		if conditional, ok := entry.provider.(Conditional); ok && !conditional.ShouldRegister(r.app) {
			r.app.Logger().DebugContext(ctx, "provider skipped", slog.String("provider", entry.name))
			continue
		}

		if len(entry.provides) > 0 {
			r.park(entry)
			continue
		}

		if err := r.register(ctx, entry); err != nil {
			return err
		}
	}

	return nil
}

// Boot runs Boot on registered providers in order and stops at the first error.
// Deferred providers registered while booting are booted as well.
func (r *Registrar) Boot(ctx context.Context) error {
	for i := 0; ; i++ {
		r.mu.Lock()
		if i >= len(r.active) {
			r.mu.Unlock()
			return nil
		}
		entry := r.active[i]
		r.mu.Unlock()

		if err := r.boot(ctx, entry); err != nil {
			return err
		}
	}
}

// Ready runs the Ready hooks of registered providers concurrently and returns
// the first error. Deferred providers loaded from now on run theirs as soon as
// they are booted.
func (r *Registrar) Ready(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	entries := slices.Clone(r.active)
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		g.Go(func() error {
			return r.ready(gctx, entry)
		})
	}

	return g.Wait()
}

// Shutdown runs Shutdown hooks in reverse registration order. Every hook runs;
// their errors are joined.
func (r *Registrar) Shutdown(ctx context.Context) error {
	entries := r.snapshot()
	slices.Reverse(entries)

	var errs []error
	for _, entry := range entries {
		shutdowner, ok := entry.provider.(Shutdowner)
		if !ok {
			continue
		}

		err := r.run(ctx, entry, phaseShutdown, func(ctx context.Context) error {
			return shutdowner.Shutdown(ctx, r.app)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Providers describes every known provider: registered ones in registration
// order, then deferred ones that have not been needed yet.
func (r *Registrar) Providers() []ProviderInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]ProviderInfo, 0, len(r.active)+len(r.deferred))
	seen := make(map[*providerEntry]bool)

	describe := func(entry *providerEntry) {
		if seen[entry] {
			return
		}
		seen[entry] = true
		infos = append(infos, ProviderInfo{
			Name:       entry.name,
			Deferred:   len(entry.provides) > 0,
			Provides:   slices.Clone(entry.provides),
			Registered: entry.registered,
			Booted:     entry.booted,
		})
	}

	for _, entry := range r.active {
		describe(entry)
	}
	for _, entry := range r.pending {
		describe(entry)
	}

	parked := make([]*providerEntry, 0, len(r.deferred))
	for _, entry := range r.deferred {
		if !seen[entry] && !slices.Contains(parked, entry) {
			parked = append(parked, entry)
		}
	}
	slices.SortFunc(parked, func(a, b *providerEntry) int {
		return cmp.Compare(a.name, b.name)
	})
	for _, entry := range parked {
		describe(entry)
	}

	return infos
}

// park records a deferred provider and installs the container trap once.
func (r *Registrar) park(entry *providerEntry) {
	r.mu.Lock()
	for _, namespace := range entry.provides {
		r.deferred[namespace] = entry
	}
	install := !r.trapped
	r.trapped = true
	r.mu.Unlock()

	if install {
		r.app.Container().Trap(r.trap)
	}
}

// trap loads the deferred provider for namespace and resolves it. A provider
// that resolves one of its own namespaces before binding it gets a
// CircularDependencyError.
func (r *Registrar) trap(namespace string) (any, bool, error) {
	r.mu.Lock()
	entry, ok := r.deferred[namespace]
	if !ok {
		r.mu.Unlock()
		return nil, false, nil
	}

	if entry.loading {
		r.mu.Unlock()
		return nil, true, fmt.Errorf("deferred provider %s is still registering: %w",
			entry.name, &kubit.CircularDependencyError{Path: []string{namespace, namespace}})
	}
	if !entry.loaded {
		entry.loading = true
		r.mu.Unlock()

		err := r.load(entry)

		r.mu.Lock()
		entry.loading = false
		entry.loaded = true
		entry.err = err
	}
	err := entry.err
	r.mu.Unlock()
	if err != nil {
		return nil, true, err
	}

	container := r.app.Container()
	if !container.HasBinding(namespace, true) {
		return nil, true, fmt.Errorf("deferred provider %s did not bind %q", entry.name, namespace)
	}

	value, err := container.Use(namespace)
	return value, true, err
}

// load catches a deferred provider up with the application: it is registered,
// booted once the app is booted and readied once the app has started.
func (r *Registrar) load(entry *providerEntry) error {
	ctx := context.Background()
	if err := r.register(ctx, entry); err != nil {
		return err
	}
	if r.app.State() >= StateBooted {
		if err := r.boot(ctx, entry); err != nil {
			return err
		}
	}

	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return nil
	}
	return r.ready(ctx, entry)
}

func (r *Registrar) register(ctx context.Context, entry *providerEntry) error {
	err := r.run(ctx, entry, phaseRegister, func(context.Context) error {
		return entry.provider.Register(r.app)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	entry.registered = true
	r.active = append(r.active, entry)
	r.mu.Unlock()
	return nil
}

func (r *Registrar) boot(ctx context.Context, entry *providerEntry) error {
	r.mu.Lock()
	booted := entry.booted
	r.mu.Unlock()
	if booted {
		return nil
	}

	if booter, ok := entry.provider.(Booter); ok {
		err := r.run(ctx, entry, phaseBoot, func(ctx context.Context) error {
			return booter.Boot(ctx, r.app)
		})
		if err != nil {
			return err
		}
	}

	r.mu.Lock()
	entry.booted = true
	r.mu.Unlock()
	return nil
}

// ready runs the Ready hook of entry at most once.
func (r *Registrar) ready(ctx context.Context, entry *providerEntry) error {
	readier, ok := entry.provider.(Readier)
	if !ok {
		return nil
	}

	r.mu.Lock()
	readied := entry.readied
	entry.readied = true
	r.mu.Unlock()
	if readied {
		return nil
	}

	return r.run(ctx, entry, phaseReady, func(ctx context.Context) error {
		return readier.Ready(ctx, r.app)
	})
}

// run executes one lifecycle hook with logging and metrics.
func (r *Registrar) run(ctx context.Context, entry *providerEntry, phase string, hook func(context.Context) error) error {
	ctx = logger.WithPhase(logger.WithProvider(ctx, entry.name), phase)
	start := time.Now()

	err := hook(ctx)
	duration := time.Since(start)
	r.app.Metrics().RecordProviderPhase(entry.name, phase, duration, err)

	if err != nil {
		r.app.Logger().ErrorContext(ctx, "provider hook failed", slog.String("error", err.Error()))
		return &ProviderError{Provider: entry.name, Phase: phase, Err: err}
	}

	r.app.Logger().DebugContext(ctx, "provider hook completed", slog.Duration("duration", duration))
	return nil
}

func (r *Registrar) snapshot() []*providerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.active)
}
