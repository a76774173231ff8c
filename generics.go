package kubit

import (
	"fmt"
	"reflect"
)

// Use resolves namespace and asserts the value to T.
// A nil value resolves to the zero T.
//
// Example:
//
//	log, err := kubit.Use[*slog.Logger](ioc, "Kubit/Core/Logger")
func Use[T any](r Resolver, namespace string) (T, error) {
	var zero T

	value, err := r.Use(namespace)
	if err != nil {
		return zero, err
	}
	return assertAs[T](namespace, value)
}

// MustUse is like Use but panics on failure. Intended for wiring code where a
// missing binding is a programming error.
func MustUse[T any](r Resolver, namespace string) T {
	value, err := Use[T](r, namespace)
	if err != nil {
		panic(err)
	}
	return value
}

// MakeAs builds target (see Ioc.Make) and asserts the result to T.
func MakeAs[T any](r Resolver, target any, args ...any) (T, error) {
	var zero T

	value, err := r.Make(target, args...)
	if err != nil {
		return zero, err
	}

	name, _ := target.(string)
	return assertAs[T](name, value)
}

func assertAs[T any](namespace string, value any) (T, error) {
	var zero T
	if value == nil {
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		return zero, &ResolutionError{
			Namespace: namespace,
			Type:      reflect.TypeFor[T](),
			Context:   fmt.Sprintf("resolved value of type %T is not a %v", value, reflect.TypeFor[T]()),
		}
	}
	return typed, nil
}

// Token names a namespace together with the type it produces. Bindings made
// through a token index T, so constructors taking a T resolve the token's namespace.
//
// Example:
//
//	var LoggerToken = kubit.NewToken[*slog.Logger]("Kubit/Core/Logger")
//
//	LoggerToken.Singleton(ioc, func(r kubit.Resolver) (*slog.Logger, error) {
//	    return slog.Default(), nil
//	})
//	log, err := LoggerToken.Resolve(ioc)
type Token[T any] struct {
	namespace string
}

// NewToken creates a token for namespace.
func NewToken[T any](namespace string) Token[T] {
	return Token[T]{namespace: namespace}
}

// Namespace returns the token's namespace.
func (t Token[T]) Namespace() string {
	return t.namespace
}

func (t Token[T]) String() string {
	return fmt.Sprintf("%s (%v)", t.namespace, reflect.TypeFor[T]())
}

// Bind registers a transient binding for the token.
func (t Token[T]) Bind(c *Ioc, fn func(r Resolver) (T, error)) error {
	return t.register(c, LifetimeTransient, fn)
}

// Singleton registers a singleton binding for the token.
func (t Token[T]) Singleton(c *Ioc, fn func(r Resolver) (T, error)) error {
	return t.register(c, LifetimeSingleton, fn)
}

// Scoped registers a scoped binding for the token.
func (t Token[T]) Scoped(c *Ioc, fn func(r Resolver) (T, error)) error {
	return t.register(c, LifetimeScoped, fn)
}

// Instance registers value for the token.
func (t Token[T]) Instance(c *Ioc, value T) error {
	if err := c.Instance(t.namespace, value); err != nil {
		return err
	}
	c.registry.IndexType(reflect.TypeFor[T](), t.namespace)
	return nil
}

// Fake registers a fake for the token.
func (t Token[T]) Fake(c *Ioc, fn func(r Resolver) (T, error)) error {
	if fn == nil {
		return &InvalidBindingError{Namespace: t.namespace, Reason: "fake callback cannot be nil"}
	}
	return c.Fake(t.namespace, func(r Resolver) (any, error) {
		return fn(r)
	})
}

// Resolve resolves the token's namespace as T.
func (t Token[T]) Resolve(r Resolver) (T, error) {
	return Use[T](r, t.namespace)
}

// MustResolve resolves the token's namespace as T and panics on failure.
func (t Token[T]) MustResolve(r Resolver) T {
	return MustUse[T](r, t.namespace)
}

func (t Token[T]) register(c *Ioc, lifetime Lifetime, fn func(r Resolver) (T, error)) error {
	if fn == nil {
		return &InvalidBindingError{Namespace: t.namespace, Reason: "callback cannot be nil"}
	}
	return c.register(t.namespace, lifetime, func(r Resolver) (any, error) {
		return fn(r)
	}, reflect.TypeFor[T]())
}
