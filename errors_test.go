package kubit

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIocLookupError(t *testing.T) {
	t.Parallel()

	err := lookupFailed("App/Missing")
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Equal(t, `kubit: cannot resolve namespace. Make sure it is bound, aliased or importable "App/Missing"`, err.Error())

	missing := missingBinding("App/Missing")
	assert.ErrorIs(t, missing, ErrLookupFailed)
	assert.Equal(t, `kubit: no binding registered "App/Missing"`, missing.Error())
	assert.NotErrorIs(t, missing, ErrInvalidNamespace)
}

func TestInvalidBindingError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *InvalidBindingError
		want string
	}{
		{"with namespace", &InvalidBindingError{Namespace: "App/Mailer", Reason: "callback cannot be nil"}, `invalid binding "App/Mailer": callback cannot be nil`},
		{"without namespace", &InvalidBindingError{Reason: "cannot make nil target"}, "invalid binding: cannot make nil target"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestResolutionError(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name string
		err  *ResolutionError
		want string
	}{
		{
			name: "namespace with cause",
			err:  &ResolutionError{Namespace: "App/Db", Cause: cause},
			want: `failed to resolve "App/Db": dial tcp: connection refused`,
		},
		{
			name: "type with context",
			err:  &ResolutionError{Type: reflect.TypeFor[*userService](), Context: "parameter 1"},
			want: "failed to resolve *kubit.userService: parameter 1",
		},
		{
			name: "namespace wins over type",
			err:  &ResolutionError{Namespace: "App/Db", Type: reflect.TypeFor[int](), Context: "initialize", Cause: cause},
			want: `failed to resolve "App/Db": initialize: dial tcp: connection refused`,
		},
		{
			name: "empty",
			err:  &ResolutionError{},
			want: "failed to resolve unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	wrapped := &ResolutionError{Namespace: "App/Db", Cause: cause}
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, (&ResolutionError{}).Unwrap())
}

func TestCircularDependencyError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "circular dependency detected", (&CircularDependencyError{}).Error())
	assert.Equal(t,
		"circular dependency detected: App/A -> App/B -> App/A",
		(&CircularDependencyError{Path: []string{"App/A", "App/B", "App/A"}}).Error(),
	)
}

func TestCircularDependency_Callbacks(t *testing.T) {
	c := New()
	require.NoError(t, c.Bind("App/A", func(r Resolver) (any, error) { return r.Use("App/B") }))
	require.NoError(t, c.Bind("App/B", func(r Resolver) (any, error) { return r.Use("App/C") }))
	require.NoError(t, c.Bind("App/C", func(r Resolver) (any, error) { return r.Use("App/A") }))

	_, err := c.Use("App/B")

	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"App/B", "App/C", "App/A", "App/B"}, cycle.Path)
}

func TestCircularDependency_SelfReference(t *testing.T) {
	c := New()
	require.NoError(t, c.Singleton("App/Self", func(r Resolver) (any, error) { return r.Use("App/Self") }))

	_, err := c.Use("App/Self")

	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"App/Self", "App/Self"}, cycle.Path)
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	first := errors.New("first problem")
	second := errors.New("second problem")

	assert.Equal(t, "validation failed", (&ValidationError{}).Error())
	assert.Equal(t, "validation failed: first problem", (&ValidationError{Errors: []error{first}}).Error())

	multi := &ValidationError{Errors: []error{first, second}}
	assert.Equal(t, "validation failed with 2 errors:\n  1. first problem\n  2. second problem\n", multi.Error())
	assert.ErrorIs(t, multi, first)
	assert.ErrorIs(t, multi, second)
}

func TestWrapResolution(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	wrapped := wrapResolution("App/Db", cause)
	var resErr *ResolutionError
	require.ErrorAs(t, wrapped, &resErr)
	assert.Equal(t, "App/Db", resErr.Namespace)

	assert.Same(t, wrapped, wrapResolution("App/Db", wrapped), "already carries the namespace")

	outer := wrapResolution("App/Service", wrapped)
	assert.NotSame(t, wrapped, outer)
	assert.ErrorIs(t, outer, cause)
}

func TestMustUse_Panics(t *testing.T) {
	c := New()

	assert.PanicsWithError(t, `kubit: cannot resolve namespace. Make sure it is bound, aliased or importable "App/Missing"`, func() {
		c.MustUse("App/Missing")
	})
}
