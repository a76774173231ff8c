package kubit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/toutaio/kubit/registry"
)

// Disposable is implemented by scoped values that need cleanup.
// Dispose runs when the owning scope is disposed.
//
// Example:
//
//	type Transaction struct{ tx pgx.Tx }
//	func (t *Transaction) Dispose() error {
//	    return t.tx.Rollback(context.Background())
//	}
type Disposable interface {
	Dispose() error
}

// Initializable is implemented by values that need setup after construction.
// Initialize runs once per built value, for every lifetime.
type Initializable interface {
	Initialize() error
}

// Scope is an isolated resolution context. Scoped bindings get one instance
// per scope; singletons and transients resolve as on the container.
// A Scope implements Resolver.
//
// Example:
//
//	scope := ioc.CreateScope()
//	defer scope.Dispose()
//
//	tx, err := scope.Use("App/Database/Transaction")
type Scope struct {
	ioc       *Ioc
	ctx       context.Context
	instances *singletonCache

	mu            sync.Mutex
	creationOrder []any
	children      []*Scope
	disposed      bool
}

// CreateScope creates a new scope for scoped bindings.
func (c *Ioc) CreateScope() *Scope {
	return c.CreateScopeContext(context.Background())
}

// CreateScopeContext creates a scope whose constructors receive ctx for their
// context.Context parameters, typically the request context.
func (c *Ioc) CreateScopeContext(ctx context.Context) *Scope {
	return &Scope{
		ioc:       c,
		ctx:       ctx,
		instances: newSingletonCache(),
	}
}

// Context returns the context the scope was created with.
func (s *Scope) Context() context.Context { return s.ctx }

// Use resolves a namespace within this scope.
func (s *Scope) Use(namespace string) (any, error) {
	if s.isDisposed() {
		return nil, ErrScopeDisposed
	}
	return s.ioc.resolve(namespace, s.root())
}

// Make builds target within this scope. See Ioc.Make.
func (s *Scope) Make(target any, args ...any) (any, error) {
	if s.isDisposed() {
		return nil, ErrScopeDisposed
	}
	return s.ioc.make(target, s.root(), args)
}

// Call invokes a method within this scope. See Ioc.Call.
func (s *Scope) Call(target any, method string, args ...any) ([]any, error) {
	if s.isDisposed() {
		return nil, ErrScopeDisposed
	}
	return s.ioc.call(target, method, s.root(), args)
}

// CreateChildScope creates a scope that is disposed together with s.
// The child keeps its own scoped instances.
func (s *Scope) CreateChildScope() (*Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, ErrScopeDisposed
	}

	child := s.ioc.CreateScopeContext(s.ctx)
	s.children = append(s.children, child)
	return child, nil
}

// Dispose disposes child scopes, then calls Dispose on scoped instances in
// reverse creation order. Calling Dispose again is a no-op.
func (s *Scope) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	children := s.children
	order := s.creationOrder
	s.children = nil
	s.creationOrder = nil
	s.mu.Unlock()

	var errs []error
	for _, child := range children {
		if err := child.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("child scope: %w", err))
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		if disposable, ok := order[i].(Disposable); ok {
			if err := disposable.Dispose(); err != nil {
				errs = append(errs, fmt.Errorf("dispose %T: %w", order[i], err))
			}
		}
	}

	s.instances.clear()
	return errors.Join(errs...)
}

// getOrCreate returns the scope's instance for a scoped binding.
func (s *Scope) getOrCreate(binding *registry.Binding, res *resolution) (any, error) {
	if s.isDisposed() {
		return nil, ErrScopeDisposed
	}

	return s.instances.getOrCreate(binding.Namespace, func() (any, error) {
		value, err := s.ioc.build(binding, res)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.creationOrder = append(s.creationOrder, value)
		s.mu.Unlock()
		return value, nil
	})
}

func (s *Scope) root() *resolution {
	return &resolution{ioc: s.ioc, scope: s}
}

func (s *Scope) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disposed
}
