package kubit

import (
	"sync"
)

// singletonInstance holds a lazily built value. The mutex serialises
// construction; a failed construction leaves done unset so it can be retried.
type singletonInstance struct {
	mu    sync.Mutex
	value any
	done  bool
}

// singletonCache manages singleton instances keyed by namespace.
type singletonCache struct {
	instances map[string]*singletonInstance
	mu        sync.RWMutex
}

// newSingletonCache creates a new singleton cache.
func newSingletonCache() *singletonCache {
	return &singletonCache{
		instances: make(map[string]*singletonInstance),
	}
}

// getOrCreate retrieves an existing singleton or creates it using the provided factory.
// The factory runs at most once per key until it succeeds, even under concurrent access.
//
// This method is goroutine-safe.
func (sc *singletonCache) getOrCreate(key string, factory func() (any, error)) (any, error) {
	sc.mu.RLock()
	instance, exists := sc.instances[key]
	sc.mu.RUnlock()

	if !exists {
		sc.mu.Lock()
		// Double-check after acquiring write lock
		instance, exists = sc.instances[key]
		if !exists {
			instance = &singletonInstance{}
			sc.instances[key] = instance
		}
		sc.mu.Unlock()
	}

	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.done {
		return instance.value, nil
	}

	value, err := factory()
	if err != nil {
		return nil, err
	}
	instance.value = value
	instance.done = true
	return value, nil
}

// set stores a pre-built value.
func (sc *singletonCache) set(key string, value any) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.instances[key] = &singletonInstance{value: value, done: true}
}

// has reports whether a value was built for key.
func (sc *singletonCache) has(key string) bool {
	sc.mu.RLock()
	instance, exists := sc.instances[key]
	sc.mu.RUnlock()

	if !exists {
		return false
	}

	instance.mu.Lock()
	defer instance.mu.Unlock()
	return instance.done
}

// forget drops the cached value for key.
func (sc *singletonCache) forget(key string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	delete(sc.instances, key)
}

// clear drops every cached value.
func (sc *singletonCache) clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.instances = make(map[string]*singletonInstance)
}
