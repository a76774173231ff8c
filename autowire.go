package kubit

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// tagOptions represents parsed options from an inject tag.
type tagOptions struct {
	skip      bool   // never inject this field
	optional  bool   // leave the field untouched when the lookup fails
	namespace string // resolve this namespace instead of the field type
}

// parseInjectTag parses an inject struct tag.
// Supported formats:
//   - `inject:""` resolve by field type
//   - `inject:"Kubit/Core/Logger"` resolve a namespace
//   - `inject:"Kubit/Core/Logger,optional"` or `inject:",optional"`
//   - `inject:"-"` skip
func parseInjectTag(tag string) tagOptions {
	if tag == "-" {
		return tagOptions{skip: true}
	}

	namespace, rest, _ := strings.Cut(tag, ",")
	opts := tagOptions{namespace: strings.TrimSpace(namespace)}

	for part := range strings.SplitSeq(rest, ",") {
		if strings.TrimSpace(part) == "optional" {
			opts.optional = true
		}
	}

	return opts
}

// AutoWire fills the `inject` tagged fields of a struct pointer.
//
// Example:
//
//	type UsersController struct {
//	    Logger *slog.Logger `inject:"Kubit/Core/Logger"`
//	    Mailer Mailer       `inject:",optional"`
//	}
//
//	ctrl := &UsersController{}
//	err := ioc.AutoWire(ctrl)
func (c *Ioc) AutoWire(instance any) error {
	return c.autoWire(instance, c.root())
}

func (c *Ioc) autoWire(instance any, res *resolution) error {
	if instance == nil {
		return &InvalidBindingError{Reason: "cannot auto-wire nil instance"}
	}

	value := reflect.ValueOf(instance)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return &InvalidBindingError{Reason: fmt.Sprintf("AutoWire requires a pointer to struct, got %T", instance)}
	}

	elem := value.Elem()
	for _, field := range c.reflectionCache.injectableFields(elem.Type()) {
		if err := c.injectField(elem.Field(field.index), field, res); err != nil {
			return fmt.Errorf("failed to inject field %s: %w", field.name, err)
		}
	}

	return nil
}

// injectField resolves and sets a single field.
func (c *Ioc) injectField(target reflect.Value, field fieldInfo, res *resolution) error {
	var (
		resolved reflect.Value
		err      error
	)

	if field.options.namespace != "" {
		var value any
		value, err = res.Use(field.options.namespace)
		if err == nil {
			resolved, err = assignable(value, field.typ)
		}
	} else {
		resolved, err = c.resolveType(field.typ, res)
	}

	if err != nil {
		if field.options.optional && errors.Is(err, ErrLookupFailed) {
			return nil
		}
		return err
	}

	target.Set(resolved)
	return nil
}
