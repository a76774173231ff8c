package kubit

import (
	"sort"
	"sync"
)

// Fakes stores test-time overrides of bindings. A fake callback runs once,
// the value is cached until the fake is deleted.
type Fakes struct {
	mu        sync.RWMutex
	callbacks map[string]BindCallback
	values    *singletonCache
}

// NewFakes creates an empty fakes table.
func NewFakes() *Fakes {
	return &Fakes{
		callbacks: make(map[string]BindCallback),
		values:    newSingletonCache(),
	}
}

// Register stores a fake for namespace, replacing any earlier fake.
func (f *Fakes) Register(namespace string, callback BindCallback) {
	f.mu.Lock()
	f.callbacks[namespace] = callback
	f.mu.Unlock()

	f.values.forget(namespace)
}

// Has reports whether namespace is faked.
func (f *Fakes) Has(namespace string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.callbacks[namespace]
	return ok
}

// Resolve returns the fake value for namespace, building it on first use.
func (f *Fakes) Resolve(namespace string, r Resolver) (any, error) {
	f.mu.RLock()
	callback, ok := f.callbacks[namespace]
	f.mu.RUnlock()

	if !ok {
		return nil, ErrMissingFake
	}

	return f.values.getOrCreate(namespace, func() (any, error) {
		return callback(r)
	})
}

// Delete removes the fake for namespace. Reports whether one existed.
func (f *Fakes) Delete(namespace string) bool {
	f.mu.Lock()
	_, ok := f.callbacks[namespace]
	delete(f.callbacks, namespace)
	f.mu.Unlock()

	f.values.forget(namespace)
	return ok
}

// Clear removes every fake.
func (f *Fakes) Clear() {
	f.mu.Lock()
	f.callbacks = make(map[string]BindCallback)
	f.mu.Unlock()

	f.values.clear()
}

// Namespaces returns the faked namespaces in sorted order.
func (f *Fakes) Namespaces() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	namespaces := make([]string, 0, len(f.callbacks))
	for namespace := range f.callbacks {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)
	return namespaces
}

// Len returns the number of registered fakes.
func (f *Fakes) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.callbacks)
}
