package kubit

import (
	"fmt"
	"reflect"
)

// make implements Ioc.Make for a resolution.
func (c *Ioc) make(target any, res *resolution, args []any) (any, error) {
	if target == nil {
		return nil, &InvalidBindingError{Reason: "cannot make nil target"}
	}

	if namespace, ok := target.(string); ok {
		value, err := c.resolve(namespace, res)
		if err != nil {
			return nil, err
		}

		// Modules loaded from import alias paths are constructed, not returned.
		if !c.HasBinding(namespace, true) && c.imports.IsAliasPath(namespace) && isFunc(value) {
			return c.make(value, res, args)
		}
		return value, nil
	}

	value := reflect.ValueOf(target)
	switch {
	case value.Kind() == reflect.Func:
		info, err := parseConstructor(target)
		if err != nil {
			return nil, &InvalidBindingError{Reason: err.Error()}
		}
		return c.invokeConstructor(info, res, args)

	case value.Kind() == reflect.Pointer && value.Elem().Kind() == reflect.Struct:
		if err := c.autoWire(target, res); err != nil {
			return nil, err
		}
		return target, nil

	default:
		return target, nil
	}
}

// call implements Ioc.Call for a resolution.
func (c *Ioc) call(target any, method string, res *resolution, args []any) ([]any, error) {
	if target == nil {
		return nil, &InvalidBindingError{Reason: "cannot call a method on nil target"}
	}

	value := reflect.ValueOf(target)
	fn := value.MethodByName(method)
	if !fn.IsValid() {
		return nil, &ResolutionError{
			Type:    value.Type(),
			Context: fmt.Sprintf("method %q not found", method),
		}
	}

	fnType := fn.Type()
	if fnType.IsVariadic() {
		return nil, &ResolutionError{
			Type:    value.Type(),
			Context: fmt.Sprintf("method %q is variadic", method),
		}
	}

	paramTypes := make([]reflect.Type, fnType.NumIn())
	for i := range paramTypes {
		paramTypes[i] = fnType.In(i)
	}

	params, err := c.resolveParams(paramTypes, res, args)
	if err != nil {
		return nil, err
	}

	results := fn.Call(params)
	if n := len(results); n > 0 && fnType.Out(n-1) == errorType {
		if !results[n-1].IsNil() {
			err = results[n-1].Interface().(error)
		}
		results = results[:n-1]
	}

	out := make([]any, len(results))
	for i, result := range results {
		out[i] = result.Interface()
	}
	return out, err
}

// Validate checks that every constructor binding's parameters can be mapped to
// a namespace. It does not build anything.
func (c *Ioc) Validate() error {
	var errs []error

	for _, namespace := range c.registry.Namespaces() {
		binding, err := c.registry.Get(namespace)
		if err != nil {
			continue
		}

		info, ok := binding.Constructor.(*constructorInfo)
		if !ok {
			continue
		}

		for i, paramType := range info.paramTypes {
			switch paramType {
			case resolverType, iocType, contextType:
				continue
			}
			if _, ok := c.registry.NamespaceFor(paramType); !ok {
				errs = append(errs, &ResolutionError{
					Namespace: namespace,
					Type:      paramType,
					Context:   fmt.Sprintf("parameter %d of type %v has no binding", i, paramType),
				})
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func isFunc(value any) bool {
	return value != nil && reflect.TypeOf(value).Kind() == reflect.Func
}
