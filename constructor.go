package kubit

import (
	"context"
	"fmt"
	"reflect"

	"github.com/toutaio/kubit/registry"
)

var (
	errorType    = reflect.TypeFor[error]()
	resolverType = reflect.TypeFor[Resolver]()
	iocType      = reflect.TypeFor[*Ioc]()
	contextType  = reflect.TypeFor[context.Context]()
)

// constructorInfo holds metadata about a constructor function.
type constructorInfo struct {
	fn           reflect.Value
	paramTypes   []reflect.Type
	returnsError bool
	returnType   reflect.Type
}

// parseConstructor analyzes a constructor function.
// Supported signatures are func(deps...) T and func(deps...) (T, error).
func parseConstructor(constructor any) (*constructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	fnValue := reflect.ValueOf(constructor)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %v", fnType.Kind())
	}
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("variadic constructors are not supported")
	}

	numOut := fnType.NumOut()
	if numOut == 0 || numOut > 2 {
		return nil, fmt.Errorf("constructor must return (T) or (T, error), got %d return values", numOut)
	}

	returnsError := false
	if numOut == 2 {
		if fnType.Out(1) != errorType {
			return nil, fmt.Errorf("constructor's second return value must be error, got %v", fnType.Out(1))
		}
		returnsError = true
	}

	paramTypes := make([]reflect.Type, fnType.NumIn())
	for i := range paramTypes {
		paramTypes[i] = fnType.In(i)
	}

	return &constructorInfo{
		fn:           fnValue,
		paramTypes:   paramTypes,
		returnsError: returnsError,
		returnType:   fnType.Out(0),
	}, nil
}

// BindConstructor registers a transient binding built by a constructor function.
// Parameters are resolved through the type index (see RegisterType); Resolver,
// *Ioc and context.Context parameters are supplied directly. The constructor's
// return type is indexed to namespace.
//
// Example:
//
//	ioc.BindConstructor("App/Services/Users", NewUserService)
//	// Where: func NewUserService(log *slog.Logger, db *pgxpool.Pool) (*UserService, error)
func (c *Ioc) BindConstructor(namespace string, constructor any) error {
	return c.bindConstructor(namespace, constructor, LifetimeTransient)
}

// SingletonConstructor registers a singleton binding built by a constructor function.
func (c *Ioc) SingletonConstructor(namespace string, constructor any) error {
	return c.bindConstructor(namespace, constructor, LifetimeSingleton)
}

// ScopedConstructor registers a scoped binding built by a constructor function.
func (c *Ioc) ScopedConstructor(namespace string, constructor any) error {
	return c.bindConstructor(namespace, constructor, LifetimeScoped)
}

func (c *Ioc) bindConstructor(namespace string, constructor any, lifetime Lifetime) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	info, err := parseConstructor(constructor)
	if err != nil {
		return &InvalidBindingError{Namespace: namespace, Reason: err.Error()}
	}

	return c.store(&registry.Binding{
		Namespace:   namespace,
		Lifetime:    string(lifetime),
		Constructor: info,
		Type:        info.returnType,
	})
}

// invokeConstructor calls a constructor with resolved dependencies.
func (c *Ioc) invokeConstructor(info *constructorInfo, res *resolution, args []any) (any, error) {
	params, err := c.resolveParams(info.paramTypes, res, args)
	if err != nil {
		return nil, err
	}

	results := info.fn.Call(params)
	if info.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}

	return results[0].Interface(), nil
}

// resolveParams builds the argument list for a function. Non-nil runtime args
// take precedence position by position; the remaining parameters are injected.
func (c *Ioc) resolveParams(types []reflect.Type, res *resolution, args []any) ([]reflect.Value, error) {
	params := make([]reflect.Value, len(types))

	for i, paramType := range types {
		if i < len(args) && args[i] != nil {
			value, err := assignable(args[i], paramType)
			if err != nil {
				return nil, &ResolutionError{
					Type:    paramType,
					Context: fmt.Sprintf("runtime argument %d", i),
					Cause:   err,
				}
			}
			params[i] = value
			continue
		}

		value, err := c.resolveType(paramType, res)
		if err != nil {
			return nil, &ResolutionError{
				Type:    paramType,
				Context: fmt.Sprintf("parameter %d", i),
				Cause:   err,
			}
		}
		params[i] = value
	}

	return params, nil
}

// resolveType resolves a value for a Go type.
func (c *Ioc) resolveType(typ reflect.Type, res *resolution) (reflect.Value, error) {
	switch typ {
	case resolverType:
		return reflect.ValueOf(Resolver(res)), nil
	case iocType:
		return reflect.ValueOf(c), nil
	case contextType:
		if res.scope != nil {
			return reflect.ValueOf(res.scope.ctx), nil
		}
		return reflect.ValueOf(context.Background()), nil
	}

	namespace, ok := c.registry.NamespaceFor(typ)
	if !ok {
		return reflect.Value{}, &IocLookupError{
			Namespace: typ.String(),
			Reason:    "no namespace registered for type",
		}
	}

	value, err := res.Use(namespace)
	if err != nil {
		return reflect.Value{}, err
	}
	return assignable(value, typ)
}

// assignable converts value to a reflect.Value usable where typ is expected.
func assignable(value any, typ reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(typ), nil
	}

	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(typ) {
		return reflect.Value{}, fmt.Errorf("value of type %v is not assignable to %v", rv.Type(), typ)
	}
	return rv, nil
}
