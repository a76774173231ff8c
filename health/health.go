// Package health aggregates readiness checks contributed by providers.
package health

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toutaio/kubit/logger"
)

const (
	defaultTimeout = 5 * time.Second

	// StatusHealthy indicates all checks passed.
	StatusHealthy = "healthy"
	// StatusUnhealthy indicates one or more checks failed.
	StatusUnhealthy = "unhealthy"
)

// CheckFunc is the signature of a single check.
type CheckFunc func(ctx context.Context) error

// Response is the aggregated result of a run.
type Response struct {
	Checks map[string]Check `json:"checks,omitempty"`
	Status string           `json:"status"`
}

// Check is the result of a single check.
type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Registry holds named checks. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout bounds every run.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger failed checks are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		checks:  make(map[string]CheckFunc),
		timeout: defaultTimeout,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces the check called name.
func (r *Registry) Register(name string, check CheckFunc) {
	if check == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.checks[name] = check
}

// Names returns the registered check names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.checks))
}

// Run executes every check concurrently and aggregates the results.
func (r *Registry) Run(ctx context.Context) *Response {
	r.mu.RLock()
	checks := maps.Clone(r.checks)
	r.mu.RUnlock()

	if len(checks) == 0 {
		return &Response{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]Check, len(checks))
		status  = StatusHealthy
	)

	// Checks report failures through results, so the group never cancels early.
	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			result := Check{Status: StatusHealthy}
			if err := check(ctx); err != nil {
				result = Check{Status: StatusUnhealthy, Error: err.Error()}
				r.logger.WarnContext(ctx, "health check failed",
					slog.String("check", name),
					slog.String("error", err.Error()),
				)
			}

			mu.Lock()
			results[name] = result
			if result.Status == StatusUnhealthy {
				status = StatusUnhealthy
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return &Response{Status: status, Checks: results}
}
