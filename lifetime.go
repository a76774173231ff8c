package kubit

// Lifetime represents the lifecycle strategy for a binding.
type Lifetime string

const (
	// LifetimeTransient runs the binding callback on every resolution.
	// This is the lifetime used by Bind().
	LifetimeTransient Lifetime = "transient"

	// LifetimeSingleton runs the callback once and reuses the value for all resolutions.
	// A callback that fails is not cached, so the next resolution retries it.
	LifetimeSingleton Lifetime = "singleton"

	// LifetimeScoped creates one instance per Scope.
	LifetimeScoped Lifetime = "scoped"
)

// String returns the string representation of the lifetime.
func (l Lifetime) String() string {
	return string(l)
}

// Resolver resolves namespaces and performs injection. Binding callbacks
// receive a Resolver that tracks the resolution path, so dependency cycles
// are reported instead of deadlocking.
type Resolver interface {
	// Use resolves a namespace.
	Use(namespace string) (any, error)

	// Make builds target with its dependencies injected.
	Make(target any, args ...any) (any, error)

	// Call invokes a method on target with its parameters injected.
	Call(target any, method string, args ...any) ([]any, error)
}

// BindCallback builds the value of a binding or a fake.
//
// Example:
//
//	ioc.Singleton("Kubit/Core/Config", func(r kubit.Resolver) (any, error) {
//	    env, err := kubit.Use[*env.Env](r, "Kubit/Core/Env")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return config.Load(env.Get("CONFIG_DIR", "config"))
//	})
type BindCallback func(r Resolver) (any, error)

// TrapFunc is consulted for namespaces no other source can resolve.
// It reports ok=false to decline the namespace.
type TrapFunc func(namespace string) (value any, ok bool, err error)
