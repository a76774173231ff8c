// Package config holds the application configuration tree.
//
// Every *.yaml or *.yml file in the config directory becomes a top-level key
// named after the file, so config/database.yaml is read through paths such as
// "database.connection". ${VAR} references are expanded before parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a concurrency-safe configuration tree addressed by dotted paths.
type Config struct {
	mu   sync.RWMutex
	data map[string]any
}

// New creates a config tree from data. A nil map starts empty.
func New(data map[string]any) *Config {
	if data == nil {
		data = make(map[string]any)
	}
	return &Config{data: data}
}

// Load reads every YAML file in dir. lookup resolves ${VAR} references; nil
// uses os.Getenv. A missing dir yields an empty tree.
func Load(dir string, lookup func(string) string) (*Config, error) {
	if lookup == nil {
		lookup = os.Getenv
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}

	data := make(map[string]any)
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}

		var tree map[string]any
		if err := yaml.Unmarshal([]byte(os.Expand(string(raw), lookup)), &tree); err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		if tree == nil {
			tree = make(map[string]any)
		}

		data[strings.TrimSuffix(entry.Name(), ext)] = tree
	}

	return New(data), nil
}

// Get returns the value at path, or def when nothing is stored there.
func (c *Config) Get(path string, def any) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if value, ok := lookup(c.data, path); ok {
		return value
	}
	return def
}

// Has reports whether a value is stored at path.
func (c *Config) Has(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := lookup(c.data, path)
	return ok
}

// String returns the value at path formatted as a string.
func (c *Config) String(path, def string) string {
	switch value := c.Get(path, nil).(type) {
	case nil:
		return def
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

// Int returns the value at path as an int. Numeric strings are parsed.
func (c *Config) Int(path string, def int) int {
	switch value := c.Get(path, nil).(type) {
	case int:
		return value
	case int64:
		return int(value)
	case uint64:
		return int(value)
	case float64:
		return int(value)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the value at path as a bool. Strings are parsed with strconv.
func (c *Config) Bool(path string, def bool) bool {
	switch value := c.Get(path, nil).(type) {
	case bool:
		return value
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return def
}

// Duration returns the value at path as a duration. Strings use
// time.ParseDuration; bare numbers are milliseconds.
func (c *Config) Duration(path string, def time.Duration) time.Duration {
	switch value := c.Get(path, nil).(type) {
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	case int:
		return time.Duration(value) * time.Millisecond
	case float64:
		return time.Duration(value * float64(time.Millisecond))
	}
	return def
}

// StringSlice returns the list at path with each element formatted as a string.
func (c *Config) StringSlice(path string) []string {
	items, ok := c.Get(path, nil).([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// Set stores value at path, creating intermediate maps.
func (c *Config) Set(path string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := strings.Split(path, ".")
	node := c.data
	for _, key := range keys[:len(keys)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[key] = next
		}
		node = next
	}
	node[keys[len(keys)-1]] = value
}

// Merge returns defaults deep-merged with the map stored at path. Stored
// values win. The tree is not modified.
func (c *Config) Merge(path string, defaults map[string]any) map[string]any {
	existing, _ := c.Get(path, nil).(map[string]any)
	return deepMerge(deepCopy(defaults), existing)
}

// Defaults writes Merge(path, defaults) back to path.
func (c *Config) Defaults(path string, defaults map[string]any) {
	c.Set(path, c.Merge(path, defaults))
}

// All returns a deep copy of the whole tree.
func (c *Config) All() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return deepCopy(c.data)
}

// Keys returns the top-level keys in sorted order.
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.data))
	for key := range c.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// LoadError reports a config file that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func lookup(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data
	for key := range strings.SplitSeq(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = node[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// deepMerge merges src into dst, recursing into nested maps, and returns dst.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = deepCopyValue(value)
	}
	return dst
}

func deepCopy(src map[string]any) map[string]any {
	if src == nil {
		return make(map[string]any)
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = deepCopyValue(value)
	}
	return dst
}

func deepCopyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return deepCopy(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
