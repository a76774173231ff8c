package kubit

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/toutaio/kubit/logger"
	"github.com/toutaio/kubit/metrics"
	"github.com/toutaio/kubit/registry"
)

// Resolution sources reported to metrics.
const (
	sourceFake    = "fake"
	sourceBinding = "binding"
	sourceAlias   = "alias"
	sourceImport  = "import"
	sourceTrap    = "trap"
)

// Ioc is the inversion of control container.
// It maps namespaces to bindings, consults test fakes, resolves import alias
// paths and injects dependencies into constructors, methods and structs.
// All methods are safe for concurrent use.
type Ioc struct {
	registry        *registry.Registry
	singletons      *singletonCache
	fakes           *Fakes
	imports         *ImportAliases
	reflectionCache *reflectionCache
	proxies         atomic.Bool
	logger          *slog.Logger
	metrics         *metrics.Collector

	trapsMu sync.RWMutex
	traps   []TrapFunc
}

// New creates a new container.
//
// Example:
//
//	ioc := kubit.New()
//	// or with options:
//	ioc := kubit.New(kubit.WithLogger(log), kubit.WithProxies())
func New(options ...Option) *Ioc {
	c := &Ioc{
		registry:        registry.New(),
		singletons:      newSingletonCache(),
		fakes:           NewFakes(),
		imports:         NewImportAliases(),
		reflectionCache: newReflectionCache(),
		logger:          logger.Discard(),
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			panic(fmt.Sprintf("failed to apply option: %v", err))
		}
	}

	return c
}

// Bind registers a transient binding. The callback runs on every resolution.
//
// Example:
//
//	ioc.Bind("App/Services/Mailer", func(r kubit.Resolver) (any, error) {
//	    return mailer.New(), nil
//	})
func (c *Ioc) Bind(namespace string, callback BindCallback) error {
	return c.register(namespace, LifetimeTransient, callback, nil)
}

// Singleton registers a binding whose callback runs once; the value is reused
// for all later resolutions. A failed callback is retried on the next resolution.
//
// Example:
//
//	ioc.Singleton("Kubit/Core/Logger", func(r kubit.Resolver) (any, error) {
//	    return logger.New(logger.Config{}), nil
//	})
func (c *Ioc) Singleton(namespace string, callback BindCallback) error {
	return c.register(namespace, LifetimeSingleton, callback, nil)
}

// Scoped registers a binding with one instance per Scope.
// Scoped bindings must be resolved through Scope.Use.
func (c *Ioc) Scoped(namespace string, callback BindCallback) error {
	return c.register(namespace, LifetimeScoped, callback, nil)
}

// Instance registers an already built value as a singleton.
// The value's dynamic type is indexed for constructor injection.
func (c *Ioc) Instance(namespace string, value any) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	binding := &registry.Binding{
		Namespace: namespace,
		Lifetime:  string(LifetimeSingleton),
		Callback: BindCallback(func(Resolver) (any, error) {
			return value, nil
		}),
		Type: reflect.TypeOf(value),
	}
	if err := c.store(binding); err != nil {
		return err
	}

	c.singletons.set(namespace, value)
	return nil
}

// RegisterType records that values of the token's type come from namespace, so
// constructors and `inject:""` fields of that type resolve it.
// Interface types are passed as nil pointers: (*Logger)(nil).
//
// Example:
//
//	ioc.RegisterType((*Mailer)(nil), "App/Services/Mailer")
func (c *Ioc) RegisterType(typeToken any, namespace string) error {
	if typeToken == nil {
		return &InvalidBindingError{Namespace: namespace, Reason: "type token cannot be nil"}
	}
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	c.registry.IndexType(typeOfToken(typeToken), namespace)
	return nil
}

// Alias registers alias as another name for an existing binding.
func (c *Ioc) Alias(namespace, alias string) error {
	if err := validateNamespace(alias); err != nil {
		return err
	}

	if err := c.registry.Alias(alias, namespace); err != nil {
		if _, ok := err.(*registry.NotFoundError); ok {
			return missingBinding(namespace)
		}
		return &InvalidBindingError{Namespace: alias, Reason: err.Error()}
	}

	c.logger.Debug("alias registered", slog.String("namespace", namespace), slog.String("alias", alias))
	return nil
}

// Tag attaches tags to an existing binding.
func (c *Ioc) Tag(namespace string, tags ...string) error {
	if err := c.registry.Tag(namespace, tags...); err != nil {
		return missingBinding(namespace)
	}
	return nil
}

// Tagged resolves every binding carrying tag, ordered by namespace.
func (c *Ioc) Tagged(tag string) ([]any, error) {
	bindings := c.registry.GetByTag(tag)
	values := make([]any, 0, len(bindings))

	for _, binding := range bindings {
		value, err := c.Use(binding.Namespace)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}

	return values, nil
}

// HasBinding reports whether namespace is bound. With checkAliases the alias
// table is consulted as well.
func (c *Ioc) HasBinding(namespace string, checkAliases bool) bool {
	if c.registry.Has(namespace) {
		return true
	}
	if !checkAliases {
		return false
	}
	_, ok := c.registry.ResolveAlias(namespace)
	return ok
}

// GetAliasNamespace returns the namespace an alias points at.
func (c *Ioc) GetAliasNamespace(alias string) (string, bool) {
	return c.registry.ResolveAlias(alias)
}

// IsSingleton reports whether namespace is bound as a singleton.
func (c *Ioc) IsSingleton(namespace string) bool {
	binding, err := c.registry.Get(namespace)
	if err != nil {
		return false
	}
	return Lifetime(binding.Lifetime) == LifetimeSingleton
}

// Resolved reports whether the singleton for namespace has already been built.
func (c *Ioc) Resolved(namespace string) bool {
	return c.singletons.has(namespace)
}

// Namespaces returns every bound namespace in sorted order.
func (c *Ioc) Namespaces() []string {
	return c.registry.Namespaces()
}

// BindingInfo describes a binding for introspection.
type BindingInfo struct {
	Namespace string
	Lifetime  Lifetime
	Type      string
	Aliases   []string
	Resolved  bool
	Faked     bool
}

// Bindings describes every binding in namespace order.
func (c *Ioc) Bindings() []BindingInfo {
	namespaces := c.registry.Namespaces()
	infos := make([]BindingInfo, 0, len(namespaces))

	for _, namespace := range namespaces {
		binding, err := c.registry.Get(namespace)
		if err != nil {
			continue
		}

		info := BindingInfo{
			Namespace: namespace,
			Lifetime:  Lifetime(binding.Lifetime),
			Aliases:   c.registry.AliasesFor(namespace),
			Resolved:  c.singletons.has(namespace),
			Faked:     c.fakes.Has(namespace),
		}
		if binding.Type != nil {
			info.Type = binding.Type.String()
		}
		infos = append(infos, info)
	}

	return infos
}

// Use resolves a namespace. Sources are consulted in order: fakes (when proxies
// are enabled), bindings, aliases, import alias paths and traps.
//
// Example:
//
//	value, err := ioc.Use("Kubit/Core/Logger")
func (c *Ioc) Use(namespace string) (any, error) {
	return c.resolve(namespace, c.root())
}

// MustUse resolves a namespace and panics on failure.
func (c *Ioc) MustUse(namespace string) any {
	value, err := c.Use(namespace)
	if err != nil {
		panic(err)
	}
	return value
}

// Make builds target with its dependencies injected:
//   - a namespace string is resolved; a constructor loaded from an import alias path is invoked
//   - a constructor function is called with its parameters resolved
//   - a pointer to struct gets its `inject` fields filled
//   - any other value is returned unchanged
//
// Runtime args take precedence over injected values, position by position.
func (c *Ioc) Make(target any, args ...any) (any, error) {
	return c.make(target, c.root(), args)
}

// Call invokes method on target with its parameters injected and returns the
// results. A trailing error result is returned as the error.
func (c *Ioc) Call(target any, method string, args ...any) ([]any, error) {
	return c.call(target, method, c.root(), args)
}

// WithBindings resolves every namespace and passes the values to fn, but only
// when all of them are bound. Reports whether fn ran.
func (c *Ioc) WithBindings(namespaces []string, fn func(values ...any) error) (bool, error) {
	for _, namespace := range namespaces {
		if !c.HasBinding(namespace, true) {
			return false, nil
		}
	}

	values := make([]any, 0, len(namespaces))
	for _, namespace := range namespaces {
		value, err := c.Use(namespace)
		if err != nil {
			return false, err
		}
		values = append(values, value)
	}

	return true, fn(values...)
}

// Fake registers a test override for namespace. When proxies are enabled Use
// returns the fake instead of the binding until Restore is called.
//
// Example:
//
//	ioc.UseProxies(true)
//	ioc.Fake("App/Services/Mailer", func(r kubit.Resolver) (any, error) {
//	    return &FakeMailer{}, nil
//	})
//	defer ioc.Restore("App/Services/Mailer")
func (c *Ioc) Fake(namespace string, callback BindCallback) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if callback == nil {
		return &InvalidBindingError{Namespace: namespace, Reason: "fake callback cannot be nil"}
	}

	c.fakes.Register(namespace, callback)
	c.metrics.SetActiveFakes(c.fakes.Len())
	c.logger.Debug("fake registered", slog.String("namespace", namespace))
	return nil
}

// Restore removes the fakes for the given namespaces.
func (c *Ioc) Restore(namespaces ...string) {
	for _, namespace := range namespaces {
		if c.fakes.Delete(namespace) {
			c.logger.Debug("fake restored", slog.String("namespace", namespace))
		}
	}
	c.metrics.SetActiveFakes(c.fakes.Len())
}

// RestoreAll removes every fake.
func (c *Ioc) RestoreAll() {
	c.fakes.Clear()
	c.metrics.SetActiveFakes(0)
}

// HasFake reports whether namespace is faked.
func (c *Ioc) HasFake(namespace string) bool {
	return c.fakes.Has(namespace)
}

// UseFake resolves the fake for namespace regardless of the proxies setting.
func (c *Ioc) UseFake(namespace string) (any, error) {
	if !c.fakes.Has(namespace) {
		return nil, fmt.Errorf("%w for %q", ErrMissingFake, namespace)
	}

	res, err := c.root().enter(namespace)
	if err != nil {
		return nil, err
	}

	value, err := c.fakes.Resolve(namespace, res)
	if err != nil {
		c.metrics.ObserveFailure(namespace)
		return nil, wrapResolution(namespace, err)
	}
	c.metrics.ObserveResolution(namespace, sourceFake)
	return value, nil
}

// UseProxies toggles transparent fake substitution in Use.
func (c *Ioc) UseProxies(enable bool) {
	c.proxies.Store(enable)
}

// ProxiesEnabled reports whether Use substitutes fakes.
func (c *Ioc) ProxiesEnabled() bool {
	return c.proxies.Load()
}

// Trap registers a catch-all resolver for namespaces no other source resolves.
// Traps are consulted in registration order.
func (c *Ioc) Trap(trap TrapFunc) {
	if trap == nil {
		return
	}

	c.trapsMu.Lock()
	defer c.trapsMu.Unlock()

	c.traps = append(c.traps, trap)
}

// Autoload registers an import alias: paths under prefix are loaded through loader.
func (c *Ioc) Autoload(prefix string, loader ModuleLoader) error {
	if err := c.imports.Register(prefix, loader); err != nil {
		return err
	}

	c.logger.Debug("import alias registered", slog.String("prefix", prefix))
	return nil
}

// ClearAutoload drops the cached module loaded for path.
func (c *Ioc) ClearAutoload(path string) {
	c.imports.Clear(path)
}

// Imports returns the import alias table.
func (c *Ioc) Imports() *ImportAliases {
	return c.imports
}

// LookupType tells what kind of source a namespace resolves from.
type LookupType string

const (
	// LookupBinding marks a bound namespace (aliases resolve to their target).
	LookupBinding LookupType = "binding"

	// LookupAlias marks an import alias path.
	LookupAlias LookupType = "alias"
)

// LookupNode is the result of Lookup.
type LookupNode struct {
	Namespace string
	Type      LookupType
}

// Lookup normalises namespace against an optional prefix and reports what it
// refers to. A leading slash makes the namespace absolute; otherwise a
// namespace that is not bound as-is is joined onto prefix.
//
// Example:
//
//	node, ok := ioc.Lookup("UsersController", "App/Controllers/Http")
//	// node.Namespace == "App/Controllers/Http/UsersController", node.Type == LookupAlias
func (c *Ioc) Lookup(namespace, prefix string) (*LookupNode, bool) {
	normalized := c.normalizeNamespace(namespace, prefix)
	if normalized == "" {
		return nil, false
	}

	if c.imports.IsAliasPath(normalized) {
		return &LookupNode{Namespace: normalized, Type: LookupAlias}, true
	}
	if c.registry.Has(normalized) {
		return &LookupNode{Namespace: normalized, Type: LookupBinding}, true
	}
	if target, ok := c.registry.ResolveAlias(normalized); ok {
		return &LookupNode{Namespace: target, Type: LookupBinding}, true
	}

	return nil, false
}

func (c *Ioc) normalizeNamespace(namespace, prefix string) string {
	if strings.HasPrefix(namespace, "/") {
		return strings.TrimPrefix(namespace, "/")
	}
	if prefix == "" || c.HasBinding(namespace, true) {
		return namespace
	}
	return strings.TrimRight(prefix, "/") + "/" + namespace
}

// register stores a callback binding.
func (c *Ioc) register(namespace string, lifetime Lifetime, callback BindCallback, typ reflect.Type) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if callback == nil {
		return &InvalidBindingError{Namespace: namespace, Reason: "callback cannot be nil"}
	}

	return c.store(&registry.Binding{
		Namespace: namespace,
		Lifetime:  string(lifetime),
		Callback:  callback,
		Type:      typ,
	})
}

// store registers a binding and drops any singleton cached for its namespace.
func (c *Ioc) store(binding *registry.Binding) error {
	replaced, err := c.registry.Register(binding)
	if err != nil {
		return &InvalidBindingError{Namespace: binding.Namespace, Reason: err.Error()}
	}
	c.singletons.forget(binding.Namespace)

	c.logger.Debug("binding registered",
		slog.String("namespace", binding.Namespace),
		slog.String("lifetime", binding.Lifetime),
		slog.Bool("replaced", replaced),
	)
	return nil
}

// resolve resolves namespace as a step of the parent resolution.
func (c *Ioc) resolve(namespace string, parent *resolution) (any, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	res, err := parent.enter(namespace)
	if err != nil {
		c.metrics.ObserveFailure(namespace)
		return nil, err
	}

	value, source, err := c.lookupValue(namespace, res)
	if err != nil {
		c.metrics.ObserveFailure(namespace)
		return nil, err
	}

	c.metrics.ObserveResolution(namespace, source)
	return value, nil
}

func (c *Ioc) lookupValue(namespace string, res *resolution) (any, string, error) {
	if c.proxies.Load() && c.fakes.Has(namespace) {
		// Fakes are cached like singletons and never capture scoped instances.
		value, err := c.fakes.Resolve(namespace, &resolution{ioc: c, path: res.path})
		if err != nil {
			return nil, sourceFake, wrapResolution(namespace, err)
		}
		return value, sourceFake, nil
	}

	if binding, err := c.registry.Get(namespace); err == nil {
		value, err := c.resolveBinding(binding, res)
		return value, sourceBinding, err
	}

	if target, ok := c.registry.ResolveAlias(namespace); ok {
		value, err := c.resolve(target, res)
		return value, sourceAlias, err
	}

	if c.imports.IsAliasPath(namespace) {
		value, err := c.imports.Resolve(context.Background(), namespace)
		return value, sourceImport, err
	}

	for _, trap := range c.trapList() {
		value, ok, err := trap(namespace)
		if !ok {
			continue
		}
		if err != nil {
			return nil, sourceTrap, wrapResolution(namespace, err)
		}
		return value, sourceTrap, nil
	}

	return nil, "", lookupFailed(namespace)
}

func (c *Ioc) resolveBinding(binding *registry.Binding, res *resolution) (any, error) {
	switch Lifetime(binding.Lifetime) {
	case LifetimeTransient:
		return c.build(binding, res)

	case LifetimeSingleton:
		// Singletons never capture scoped instances.
		detached := &resolution{ioc: c, path: res.path}
		return c.singletons.getOrCreate(binding.Namespace, func() (any, error) {
			return c.build(binding, detached)
		})

	case LifetimeScoped:
		if res.scope == nil {
			return nil, &ResolutionError{
				Namespace: binding.Namespace,
				Context:   "scoped binding must be resolved through a Scope",
			}
		}
		return res.scope.getOrCreate(binding, res)

	default:
		return nil, &ResolutionError{
			Namespace: binding.Namespace,
			Context:   fmt.Sprintf("unknown lifetime %q", binding.Lifetime),
		}
	}
}

// build runs the binding recipe and initializes the result.
func (c *Ioc) build(binding *registry.Binding, res *resolution) (any, error) {
	var (
		value any
		err   error
	)

	switch {
	case binding.Constructor != nil:
		value, err = c.invokeConstructor(binding.Constructor.(*constructorInfo), res, nil)
	case binding.Callback != nil:
		value, err = binding.Callback.(BindCallback)(res)
	default:
		err = fmt.Errorf("binding has neither callback nor constructor")
	}
	if err != nil {
		return nil, wrapResolution(binding.Namespace, err)
	}

	if initializable, ok := value.(Initializable); ok {
		if err := initializable.Initialize(); err != nil {
			return nil, &ResolutionError{Namespace: binding.Namespace, Context: "initialize", Cause: err}
		}
	}

	return value, nil
}

func (c *Ioc) trapList() []TrapFunc {
	c.trapsMu.RLock()
	defer c.trapsMu.RUnlock()

	return slices.Clone(c.traps)
}

func (c *Ioc) root() *resolution {
	return &resolution{ioc: c}
}

// resolution tracks the chain of namespaces being resolved so cycles are
// reported instead of deadlocking on a singleton under construction.
type resolution struct {
	ioc   *Ioc
	scope *Scope
	path  []string
}

func (r *resolution) Use(namespace string) (any, error) {
	return r.ioc.resolve(namespace, r)
}

func (r *resolution) Make(target any, args ...any) (any, error) {
	return r.ioc.make(target, r, args)
}

func (r *resolution) Call(target any, method string, args ...any) ([]any, error) {
	return r.ioc.call(target, method, r, args)
}

// enter returns the child resolution for namespace.
func (r *resolution) enter(namespace string) (*resolution, error) {
	if slices.Contains(r.path, namespace) {
		path := append(slices.Clone(r.path), namespace)
		return nil, &CircularDependencyError{Path: path}
	}

	path := make([]string, len(r.path), len(r.path)+1)
	copy(path, r.path)
	return &resolution{
		ioc:   r.ioc,
		scope: r.scope,
		path:  append(path, namespace),
	}, nil
}

func validateNamespace(namespace string) error {
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("%w: namespace cannot be empty", ErrInvalidNamespace)
	}
	return nil
}

// typeOfToken extracts the type a token stands for. Pointers to interfaces
// stand for the interface; everything else for its own type.
func typeOfToken(token any) reflect.Type {
	if typ, ok := token.(reflect.Type); ok {
		return typ
	}

	typ := reflect.TypeOf(token)
	if typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Interface {
		return typ.Elem()
	}
	return typ
}
