package kubit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ModuleLoader loads the module at path, relative to the prefix it was
// registered under. For "App/Models/User" registered under "App" the loader
// receives "Models/User".
type ModuleLoader func(ctx context.Context, path string) (any, error)

// ImportAliases maps path prefixes to module loaders and caches loaded modules.
//
// Example:
//
//	aliases := kubit.NewImportAliases()
//	aliases.Register("App", func(ctx context.Context, path string) (any, error) {
//	    return models.Lookup(path)
//	})
//	user, err := aliases.Resolve(ctx, "App/Models/User")
type ImportAliases struct {
	mu      sync.RWMutex
	loaders map[string]ModuleLoader
	cache   map[string]any
	group   singleflight.Group
}

// NewImportAliases creates an empty alias table.
func NewImportAliases() *ImportAliases {
	return &ImportAliases{
		loaders: make(map[string]ModuleLoader),
		cache:   make(map[string]any),
	}
}

// Register maps prefix to loader, replacing an earlier loader for the same prefix.
func (ia *ImportAliases) Register(prefix string, loader ModuleLoader) error {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return &InvalidBindingError{Reason: "import alias prefix cannot be empty"}
	}
	if loader == nil {
		return &InvalidBindingError{Namespace: prefix, Reason: "module loader cannot be nil"}
	}

	ia.mu.Lock()
	defer ia.mu.Unlock()

	ia.loaders[prefix] = loader
	for path := range ia.cache {
		if hasPathPrefix(path, prefix) {
			delete(ia.cache, path)
		}
	}
	return nil
}

// Prefixes returns the registered prefixes in sorted order.
func (ia *ImportAliases) Prefixes() []string {
	ia.mu.RLock()
	defer ia.mu.RUnlock()

	prefixes := make([]string, 0, len(ia.loaders))
	for prefix := range ia.loaders {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// IsAliasPath reports whether path starts with a registered prefix.
func (ia *ImportAliases) IsAliasPath(path string) bool {
	_, _, ok := ia.match(path)
	return ok
}

// Resolve loads the module at path, returning the cached module when present.
// Concurrent first loads of the same path share a single loader call.
func (ia *ImportAliases) Resolve(ctx context.Context, path string) (any, error) {
	ia.mu.RLock()
	module, cached := ia.cache[path]
	ia.mu.RUnlock()
	if cached {
		return module, nil
	}

	prefix, loader, ok := ia.match(path)
	if !ok {
		return nil, lookupFailed(path)
	}

	module, err, _ := ia.group.Do(path, func() (any, error) {
		relative := strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
		loaded, err := loader(ctx, relative)
		if err != nil {
			return nil, &ResolutionError{
				Namespace: path,
				Context:   fmt.Sprintf("import alias %q failed to load module", prefix),
				Cause:     err,
			}
		}

		ia.mu.Lock()
		ia.cache[path] = loaded
		ia.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return module, nil
}

// Clear drops the cached module for path so the next Resolve reloads it.
func (ia *ImportAliases) Clear(path string) {
	ia.mu.Lock()
	defer ia.mu.Unlock()

	delete(ia.cache, path)
}

// ClearAll drops every cached module.
func (ia *ImportAliases) ClearAll() {
	ia.mu.Lock()
	defer ia.mu.Unlock()

	ia.cache = make(map[string]any)
}

// match finds the longest registered prefix of path.
func (ia *ImportAliases) match(path string) (string, ModuleLoader, bool) {
	ia.mu.RLock()
	defer ia.mu.RUnlock()

	var (
		best   string
		loader ModuleLoader
	)
	for prefix, l := range ia.loaders {
		if hasPathPrefix(path, prefix) && len(prefix) > len(best) {
			best, loader = prefix, l
		}
	}
	return best, loader, loader != nil
}

// hasPathPrefix reports whether path equals prefix or continues it with a slash.
func hasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
