package kubit

import (
	"reflect"
	"sync"
)

// reflectionCache caches the injectable fields of struct types so Make does
// not rescan tags on every call.
type reflectionCache struct {
	mu     sync.RWMutex
	fields map[reflect.Type][]fieldInfo
}

// fieldInfo describes one struct field carrying an inject tag.
type fieldInfo struct {
	index   int
	name    string
	typ     reflect.Type
	options tagOptions
}

func newReflectionCache() *reflectionCache {
	return &reflectionCache{
		fields: make(map[reflect.Type][]fieldInfo),
	}
}

// injectableFields returns the exported, tagged fields of a struct type.
func (rc *reflectionCache) injectableFields(typ reflect.Type) []fieldInfo {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	rc.mu.RLock()
	fields, exists := rc.fields[typ]
	rc.mu.RUnlock()
	if exists {
		return fields
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	// Double-check after acquiring write lock
	if fields, exists = rc.fields[typ]; exists {
		return fields
	}

	if typ.Kind() != reflect.Struct {
		rc.fields[typ] = nil
		return nil
	}

	for i := range typ.NumField() {
		field := typ.Field(i)
		tag, ok := field.Tag.Lookup("inject")
		if !ok || !field.IsExported() {
			continue
		}

		options := parseInjectTag(tag)
		if options.skip {
			continue
		}

		fields = append(fields, fieldInfo{
			index:   i,
			name:    field.Name,
			typ:     field.Type,
			options: options,
		})
	}

	rc.fields[typ] = fields
	return fields
}
