package kubit

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrLookupFailed is returned when a namespace cannot be resolved by any source.
	ErrLookupFailed = errors.New("kubit: lookup failed")

	// ErrInvalidNamespace is returned for empty or malformed namespaces.
	ErrInvalidNamespace = errors.New("kubit: invalid namespace")

	// ErrMissingFake is returned by UseFake when no fake is registered.
	ErrMissingFake = errors.New("kubit: missing fake")

	// ErrScopeDisposed is returned when resolving from a disposed scope.
	ErrScopeDisposed = errors.New("kubit: scope disposed")
)

// IocLookupError is returned when a namespace is not bound, aliased, faked,
// importable or trapped.
type IocLookupError struct {
	Namespace string
	Reason    string
}

// lookupFailed reports a namespace that no source could resolve.
func lookupFailed(namespace string) *IocLookupError {
	return &IocLookupError{
		Namespace: namespace,
		Reason:    "cannot resolve namespace. Make sure it is bound, aliased or importable",
	}
}

// missingBinding reports an operation that required an existing binding.
func missingBinding(namespace string) *IocLookupError {
	return &IocLookupError{
		Namespace: namespace,
		Reason:    "no binding registered",
	}
}

func (e *IocLookupError) Error() string {
	return fmt.Sprintf("kubit: %s %q", e.Reason, e.Namespace)
}

// Is reports ErrLookupFailed as a match.
func (e *IocLookupError) Is(target error) bool {
	return target == ErrLookupFailed
}

// InvalidBindingError is returned when a binding has invalid parameters.
type InvalidBindingError struct {
	Namespace string
	Reason    string
}

func (e *InvalidBindingError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("invalid binding: %s", e.Reason)
	}
	return fmt.Sprintf("invalid binding %q: %s", e.Namespace, e.Reason)
}

// ResolutionError is returned when instance resolution fails.
type ResolutionError struct {
	Namespace string
	Type      reflect.Type
	Cause     error
	Context   string
}

func (e *ResolutionError) Error() string {
	subject := "unknown"
	switch {
	case e.Namespace != "":
		subject = fmt.Sprintf("%q", e.Namespace)
	case e.Type != nil:
		subject = e.Type.String()
	}

	contextStr := ""
	if e.Context != "" {
		contextStr = fmt.Sprintf(": %s", e.Context)
	}

	causeStr := ""
	if e.Cause != nil {
		causeStr = fmt.Sprintf(": %v", e.Cause)
	}

	return fmt.Sprintf("failed to resolve %s%s%s", subject, contextStr, causeStr)
}

// Unwrap returns the underlying cause error.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// CircularDependencyError indicates a circular dependency was detected.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	if len(e.Path) == 0 {
		return "circular dependency detected"
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// ValidationError aggregates problems found by Ioc.Validate.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %v", e.Errors[0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %v\n", i+1, err)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	return e.Errors
}

// wrapResolution wraps err with namespace context unless it already carries it.
func wrapResolution(namespace string, err error) error {
	var re *ResolutionError
	if errors.As(err, &re) && re.Namespace == namespace {
		return err
	}
	return &ResolutionError{Namespace: namespace, Cause: err}
}
