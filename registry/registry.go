// Package registry provides thread-safe storage and retrieval of container bindings.
//
// Bindings are keyed by namespace (e.g. "Kubit/Core/Logger"). The registry also
// keeps the alias table and an index from Go types to the namespace that
// produces them, which constructor injection uses to resolve parameters.
package registry

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"
)

// Binding represents a namespace and the recipe used to build its value.
type Binding struct {
	// Namespace is the key the binding is registered under.
	Namespace string

	// Lifetime defines how instances are managed.
	// Values: "transient", "singleton", "scoped"
	Lifetime string

	// Callback is the factory closure for callback bindings (stores kubit.BindCallback).
	Callback any

	// Constructor holds constructor function metadata for constructor bindings.
	Constructor any

	// Type is the Go type the binding produces, when known.
	Type reflect.Type

	// Tags are optional labels for grouping bindings.
	Tags []string
}

// Registry provides thread-safe storage for bindings and aliases.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
	aliases  map[string]string
	types    map[reflect.Type]string
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		bindings: make(map[string]*Binding),
		aliases:  make(map[string]string),
		types:    make(map[reflect.Type]string),
	}
}

// Register stores a binding in the registry. An existing binding for the same
// namespace is replaced and replaced is reported as true.
//
// This method is goroutine-safe.
func (r *Registry) Register(binding *Binding) (replaced bool, err error) {
	if binding == nil {
		return false, fmt.Errorf("binding cannot be nil")
	}
	if binding.Namespace == "" {
		return false, fmt.Errorf("binding namespace cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced = r.bindings[binding.Namespace]
	r.bindings[binding.Namespace] = binding
	if binding.Type != nil {
		r.types[binding.Type] = binding.Namespace
	}
	return replaced, nil
}

// Get retrieves a binding by namespace.
//
// This method is goroutine-safe.
func (r *Registry) Get(namespace string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, exists := r.bindings[namespace]
	if !exists {
		return nil, &NotFoundError{Namespace: namespace}
	}

	return binding, nil
}

// Has checks if a binding exists for the given namespace.
//
// This method is goroutine-safe.
func (r *Registry) Has(namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.bindings[namespace]
	return exists
}

// Remove deletes a binding together with the aliases and type index entries
// pointing at it. Reports whether a binding was removed.
func (r *Registry) Remove(namespace string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[namespace]; !exists {
		return false
	}
	delete(r.bindings, namespace)

	for alias, target := range r.aliases {
		if target == namespace {
			delete(r.aliases, alias)
		}
	}
	for typ, target := range r.types {
		if target == namespace {
			delete(r.types, typ)
		}
	}
	return true
}

// Alias registers alias as another name for namespace.
// The target namespace must already be bound.
func (r *Registry) Alias(alias, namespace string) error {
	if alias == "" {
		return fmt.Errorf("alias cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[namespace]; !exists {
		return &NotFoundError{Namespace: namespace}
	}
	if alias == namespace {
		return fmt.Errorf("alias %q cannot point at itself", alias)
	}

	r.aliases[alias] = namespace
	return nil
}

// ResolveAlias returns the namespace an alias points at.
func (r *Registry) ResolveAlias(alias string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	namespace, ok := r.aliases[alias]
	return namespace, ok
}

// AliasesFor returns the sorted aliases registered for a namespace.
func (r *Registry) AliasesFor(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var aliases []string
	for alias, target := range r.aliases {
		if target == namespace {
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)
	return aliases
}

// IndexType records that values of typ are produced by namespace.
func (r *Registry) IndexType(typ reflect.Type, namespace string) {
	if typ == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.types[typ] = namespace
}

// NamespaceFor returns the namespace producing values of typ.
func (r *Registry) NamespaceFor(typ reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	namespace, ok := r.types[typ]
	return namespace, ok
}

// Namespaces returns every bound namespace in sorted order.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	namespaces := make([]string, 0, len(r.bindings))
	for namespace := range r.bindings {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)
	return namespaces
}

// Tag appends tags to an existing binding, skipping tags it already carries.
func (r *Registry) Tag(namespace string, tags ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.bindings[namespace]
	if !ok {
		return &NotFoundError{Namespace: namespace}
	}

	for _, tag := range tags {
		if !slices.Contains(binding.Tags, tag) {
			binding.Tags = append(binding.Tags, tag)
		}
	}
	return nil
}

// GetByTag returns all bindings that have the specified tag, ordered by namespace.
func (r *Registry) GetByTag(tag string) []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Binding
	for _, binding := range r.bindings {
		if slices.Contains(binding.Tags, tag) {
			result = append(result, binding)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Namespace < result[j].Namespace
	})
	return result
}

// NotFoundError is returned when a requested binding does not exist.
type NotFoundError struct {
	Namespace string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("binding not found for namespace %q", e.Namespace)
}
