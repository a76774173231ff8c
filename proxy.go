package kubit

import "fmt"

// Proxy is a late-bound handle to a namespace. Every Value call resolves
// again and prefers a registered fake, so code holding a Proxy observes fakes
// swapped in and out during tests.
type Proxy struct {
	ioc       *Ioc
	namespace string
}

// Proxy returns a handle to namespace.
//
// Example:
//
//	mailer := ioc.Proxy("App/Services/Mailer")
//	ioc.Fake("App/Services/Mailer", fakeMailer)
//	value, _ := mailer.Value() // the fake
func (c *Ioc) Proxy(namespace string) *Proxy {
	return &Proxy{ioc: c, namespace: namespace}
}

// Namespace returns the proxied namespace.
func (p *Proxy) Namespace() string {
	return p.namespace
}

// IsFaked reports whether a fake currently shadows the namespace.
func (p *Proxy) IsFaked() bool {
	return p.ioc.HasFake(p.namespace)
}

// Value resolves the fake when present, otherwise the namespace.
func (p *Proxy) Value() (any, error) {
	if p.ioc.HasFake(p.namespace) {
		return p.ioc.UseFake(p.namespace)
	}
	return p.ioc.Use(p.namespace)
}

func (p *Proxy) String() string {
	return fmt.Sprintf("Proxy(%s)", p.namespace)
}

// TypedProxy is a Proxy that asserts its value to T.
type TypedProxy[T any] struct {
	proxy *Proxy
}

// ProxyOf returns a typed handle to namespace.
func ProxyOf[T any](c *Ioc, namespace string) TypedProxy[T] {
	return TypedProxy[T]{proxy: c.Proxy(namespace)}
}

// Namespace returns the proxied namespace.
func (p TypedProxy[T]) Namespace() string {
	return p.proxy.namespace
}

// IsFaked reports whether a fake currently shadows the namespace.
func (p TypedProxy[T]) IsFaked() bool {
	return p.proxy.IsFaked()
}

// Get resolves the current value as T.
func (p TypedProxy[T]) Get() (T, error) {
	value, err := p.proxy.Value()
	if err != nil {
		var zero T
		return zero, err
	}
	return assertAs[T](p.proxy.namespace, value)
}
