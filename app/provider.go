package app

import (
	"context"
	"reflect"
)

// Provider registers bindings into the application container.
//
// Example:
//
//	type RedisProvider struct{}
//
//	func (p *RedisProvider) Register(app *app.Application) error {
//	    return app.Container().Singleton("Kubit/Addons/Redis", func(r kubit.Resolver) (any, error) {
//	        return redis.NewClient(&redis.Options{Addr: "localhost:6379"}), nil
//	    })
//	}
type Provider interface {
	Register(app *Application) error
}

// Booter is an optional interface for providers that need a boot phase.
// Boot runs after every provider has registered, so bindings from other
// providers can be resolved.
type Booter interface {
	Boot(ctx context.Context, app *Application) error
}

// Readier is an optional interface for providers that start work once the
// application is booted. Ready hooks run concurrently.
type Readier interface {
	Ready(ctx context.Context, app *Application) error
}

// Shutdowner is an optional interface for providers that release resources.
// Shutdown hooks run in reverse registration order.
type Shutdowner interface {
	Shutdown(ctx context.Context, app *Application) error
}

// Conditional is an optional interface for providers that decide at
// registration time whether to register at all.
type Conditional interface {
	ShouldRegister(app *Application) bool
}

// Deferred is an optional interface for providers registered lazily, on the
// first lookup of any namespace they provide.
type Deferred interface {
	Provides() []string
}

// Named is an optional interface overriding the provider name used in logs,
// metrics and Ace output.
type Named interface {
	Name() string
}

// ProviderName returns the provider's Name, or its type name.
func ProviderName(p Provider) string {
	if named, ok := p.(Named); ok {
		return named.Name()
	}

	typ := reflect.TypeOf(p)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.String()
}
