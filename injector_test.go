package kubit

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userRepository struct {
	dsn string
}

type userService struct {
	repo   *userRepository
	mailer Mailer
}

func newUserRepository() *userRepository {
	return &userRepository{dsn: "postgres://localhost/kubit"}
}

func newUserService(repo *userRepository, mailer Mailer) (*userService, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	return &userService{repo: repo, mailer: mailer}, nil
}

type usersController struct {
	Service  *userService `inject:""`
	Mailer   Mailer       `inject:"App/Mailer"`
	Cache    any          `inject:"App/Cache,optional"`
	Audit    Mailer       `inject:",optional"`
	Skipped  *userService `inject:"-"`
	Untagged *userService
	hidden   *userService `inject:""`
}

func (c *usersController) Store(service *userService, name string) (string, error) {
	if name == "" {
		return "", errors.New("name is required")
	}
	return service.repo.dsn + "/" + name, nil
}

func (c *usersController) Index(ctx context.Context, r Resolver) int {
	if ctx == nil || r == nil {
		return 0
	}
	return 200
}

func newInjectorContainer(t *testing.T) *Ioc {
	t.Helper()

	c := New()
	require.NoError(t, c.SingletonConstructor("App/Repositories/User", newUserRepository))
	require.NoError(t, c.BindConstructor("App/Services/User", newUserService))
	require.NoError(t, c.Instance("App/Mailer", &smtpMailer{host: "smtp"}))
	require.NoError(t, c.RegisterType((*Mailer)(nil), "App/Mailer"))
	return c
}

func TestParseConstructor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ctor    any
		wantErr string
	}{
		{"value return", func() int { return 1 }, ""},
		{"with error", newUserService, ""},
		{"nil", nil, "cannot be nil"},
		{"not a func", 42, "must be a function"},
		{"no results", func() {}, "got 0 return values"},
		{"three results", func() (int, int, error) { return 0, 0, nil }, "got 3 return values"},
		{"second not error", func() (int, int) { return 0, 0 }, "must be error"},
		{"variadic", func(...int) int { return 0 }, "variadic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConstructor(tt.ctor)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBindConstructor(t *testing.T) {
	c := newInjectorContainer(t)

	service, err := Use[*userService](c, "App/Services/User")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/kubit", service.repo.dsn)
	assert.IsType(t, &smtpMailer{}, service.mailer)

	again, err := Use[*userService](c, "App/Services/User")
	require.NoError(t, err)
	assert.NotSame(t, service, again, "transient constructor")
	assert.Same(t, service.repo, again.repo, "singleton dependency")
}

func TestBindConstructor_Invalid(t *testing.T) {
	c := New()

	var invalid *InvalidBindingError
	assert.ErrorAs(t, c.BindConstructor("App/Bad", "not a func"), &invalid)
	assert.ErrorIs(t, c.BindConstructor("", newUserRepository), ErrInvalidNamespace)
}

func TestBindConstructor_ErrorPropagates(t *testing.T) {
	c := New()
	boom := errors.New("connection refused")
	require.NoError(t, c.SingletonConstructor("App/Db", func() (*userRepository, error) {
		return nil, boom
	}))

	_, err := c.Use("App/Db")
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Resolved("App/Db"))
}

func TestBindConstructor_MissingDependency(t *testing.T) {
	c := New()
	require.NoError(t, c.BindConstructor("App/Services/User", newUserService))

	_, err := c.Use("App/Services/User")
	assert.ErrorIs(t, err, ErrLookupFailed)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, err.Error(), "parameter 0")
}

func TestConstructor_CircularDependency(t *testing.T) {
	type a struct{}
	type b struct{}

	c := New()
	require.NoError(t, c.SingletonConstructor("App/A", func(*b) *a { return &a{} }))
	require.NoError(t, c.SingletonConstructor("App/B", func(*a) *b { return &b{} }))

	_, err := c.Use("App/A")

	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"App/A", "App/B", "App/A"}, cycle.Path)
}

func TestConstructor_SpecialParameters(t *testing.T) {
	c := New()

	value, err := c.Make(func(ctx context.Context, r Resolver, ioc *Ioc) bool {
		return ctx != nil && r != nil && ioc == c
	})
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestMake_RuntimeArgs(t *testing.T) {
	c := newInjectorContainer(t)
	custom := &userRepository{dsn: "sqlite://memory"}

	value, err := c.Make(newUserService, custom)
	require.NoError(t, err)
	assert.Equal(t, "sqlite://memory", value.(*userService).repo.dsn)

	value, err = c.Make(newUserService, nil, &fakeMailer{})
	require.NoError(t, err)
	assert.IsType(t, &fakeMailer{}, value.(*userService).mailer)
	assert.Equal(t, "postgres://localhost/kubit", value.(*userService).repo.dsn)

	_, err = c.Make(newUserService, "wrong type")
	assert.ErrorContains(t, err, "runtime argument 0")
}

func TestMake_Namespace(t *testing.T) {
	c := newInjectorContainer(t)

	value, err := c.Make("App/Mailer")
	require.NoError(t, err)
	assert.IsType(t, &smtpMailer{}, value)
}

func TestMake_ImportedConstructor(t *testing.T) {
	c := newInjectorContainer(t)
	require.NoError(t, c.Autoload("App", func(ctx context.Context, path string) (any, error) {
		if path == "Controllers/Users" {
			return func(service *userService) *usersController {
				return &usersController{Service: service}
			}, nil
		}
		return nil, errors.New("no such module")
	}))

	value, err := c.Make("App/Controllers/Users")
	require.NoError(t, err)
	ctrl, ok := value.(*usersController)
	require.True(t, ok)
	assert.NotNil(t, ctrl.Service)

	_, err = c.Make("App/Controllers/Missing")
	assert.ErrorContains(t, err, "no such module")
}

func TestMake_PassThrough(t *testing.T) {
	c := New()

	value, err := c.Make(42)
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	_, err = c.Make(nil)
	assert.Error(t, err)
}

func TestAutoWire(t *testing.T) {
	c := newInjectorContainer(t)
	require.NoError(t, c.RegisterType((*userService)(nil), "App/Services/User"))

	ctrl := &usersController{}
	value, err := c.Make(ctrl)
	require.NoError(t, err)
	assert.Same(t, ctrl, value)

	require.NotNil(t, ctrl.Service)
	assert.IsType(t, &smtpMailer{}, ctrl.Mailer)
	assert.Nil(t, ctrl.Cache, "optional namespace left empty")
	assert.IsType(t, &smtpMailer{}, ctrl.Audit, "optional by type still resolved when bound")
	assert.Nil(t, ctrl.Skipped)
	assert.Nil(t, ctrl.Untagged)
	assert.Nil(t, ctrl.hidden)
}

func TestAutoWire_RequiredMissing(t *testing.T) {
	c := New()

	err := c.AutoWire(&usersController{})
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.ErrorContains(t, err, "failed to inject field Service")
}

func TestAutoWire_OptionalDoesNotHideFailures(t *testing.T) {
	type target struct {
		Value any `inject:"App/Broken,optional"`
	}

	c := New()
	boom := errors.New("boom")
	require.NoError(t, c.Bind("App/Broken", func(Resolver) (any, error) { return nil, boom }))

	err := c.AutoWire(&target{})
	assert.ErrorIs(t, err, boom)
}

func TestAutoWire_TypeMismatch(t *testing.T) {
	type target struct {
		Logger *slog.Logger `inject:"App/Mailer"`
	}

	c := newInjectorContainer(t)
	err := c.AutoWire(&target{})
	assert.ErrorContains(t, err, "not assignable")
}

func TestAutoWire_Invalid(t *testing.T) {
	c := New()

	assert.Error(t, c.AutoWire(nil))
	assert.Error(t, c.AutoWire(usersController{}))
	assert.Error(t, c.AutoWire(new(int)))
}

func TestCall(t *testing.T) {
	c := newInjectorContainer(t)
	require.NoError(t, c.RegisterType((*userService)(nil), "App/Services/User"))
	ctrl := &usersController{}

	results, err := c.Call(ctrl, "Store", nil, "jane")
	require.NoError(t, err)
	assert.Equal(t, []any{"postgres://localhost/kubit/jane"}, results)

	results, err = c.Call(ctrl, "Store", nil, "")
	assert.EqualError(t, err, "name is required")
	assert.Equal(t, []any{""}, results)

	results, err = c.Call(ctrl, "Index")
	require.NoError(t, err)
	assert.Equal(t, []any{200}, results)

	_, err = c.Call(ctrl, "Missing")
	assert.ErrorContains(t, err, `method "Missing" not found`)

	_, err = c.Call(nil, "Store")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := New()
	require.NoError(t, c.BindConstructor("App/Services/User", newUserService))
	require.NoError(t, c.BindConstructor("App/Health", func(ctx context.Context, r Resolver) bool { return true }))

	err := c.Validate()
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Len(t, validation.Errors, 2, "repository and mailer are unbound")

	require.NoError(t, c.SingletonConstructor("App/Repositories/User", newUserRepository))
	require.NoError(t, c.Instance("App/Mailer", &smtpMailer{}))
	require.NoError(t, c.RegisterType((*Mailer)(nil), "App/Mailer"))
	assert.NoError(t, c.Validate())
}

func TestParseInjectTag(t *testing.T) {
	t.Parallel()

	tests := map[string]tagOptions{
		"":                           {},
		"-":                          {skip: true},
		"Kubit/Core/Logger":          {namespace: "Kubit/Core/Logger"},
		"Kubit/Core/Logger,optional": {namespace: "Kubit/Core/Logger", optional: true},
		",optional":                  {optional: true},
		" App/Mailer , optional ":    {namespace: "App/Mailer", optional: true},
	}

	for tag, want := range tests {
		assert.Equal(t, want, parseInjectTag(tag), tag)
	}
}

func TestReflectionCache(t *testing.T) {
	t.Parallel()

	cache := newReflectionCache()
	fields := cache.injectableFields(reflect.TypeOf(&usersController{}))

	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.name)
	}
	assert.Equal(t, []string{"Service", "Mailer", "Cache", "Audit"}, names)

	again := cache.injectableFields(reflect.TypeOf(usersController{}))
	assert.Equal(t, fields, again)
	assert.Nil(t, cache.injectableFields(reflect.TypeOf(42)))
}
