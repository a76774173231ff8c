package kubit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakesTable(t *testing.T) {
	t.Parallel()

	fakes := NewFakes()
	assert.Zero(t, fakes.Len())
	assert.False(t, fakes.Has("App/Mailer"))

	_, err := fakes.Resolve("App/Mailer", nil)
	assert.ErrorIs(t, err, ErrMissingFake)

	calls := 0
	fakes.Register("App/Mailer", func(Resolver) (any, error) {
		calls++
		return &fakeMailer{}, nil
	})
	fakes.Register("App/Cache", constant("memory"))

	first, err := fakes.Resolve("App/Mailer", nil)
	require.NoError(t, err)
	second, err := fakes.Resolve("App/Mailer", nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	assert.Equal(t, 2, fakes.Len())
	assert.Equal(t, []string{"App/Cache", "App/Mailer"}, fakes.Namespaces())

	assert.True(t, fakes.Delete("App/Mailer"))
	assert.False(t, fakes.Delete("App/Mailer"))

	fakes.Clear()
	assert.Zero(t, fakes.Len())
	assert.Empty(t, fakes.Namespaces())
}

func TestFakesTable_ReplaceDropsCachedValue(t *testing.T) {
	t.Parallel()

	fakes := NewFakes()
	fakes.Register("App/Clock", constant("first"))
	value, err := fakes.Resolve("App/Clock", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", value)

	fakes.Register("App/Clock", constant("second"))
	value, err = fakes.Resolve("App/Clock", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestFakesTable_FailureIsRetried(t *testing.T) {
	t.Parallel()

	fakes := NewFakes()
	fail := true
	fakes.Register("App/Clock", func(Resolver) (any, error) {
		if fail {
			return nil, errors.New("not yet")
		}
		return "ok", nil
	})

	_, err := fakes.Resolve("App/Clock", nil)
	assert.Error(t, err)

	fail = false
	value, err := fakes.Resolve("App/Clock", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestFake_ResolvesDependencies(t *testing.T) {
	c := New(WithProxies())
	require.NoError(t, c.Instance("App/Config/Host", "smtp.test"))
	require.NoError(t, c.Fake("App/Mailer", func(r Resolver) (any, error) {
		host, err := Use[string](r, "App/Config/Host")
		if err != nil {
			return nil, err
		}
		return &smtpMailer{host: host}, nil
	}))

	mailer, err := Use[*smtpMailer](c, "App/Mailer")
	require.NoError(t, err)
	assert.Equal(t, "smtp.test", mailer.host)
}

func TestFake_CannotCaptureScoped(t *testing.T) {
	c := New(WithProxies())
	require.NoError(t, c.Scoped("App/Db/Transaction", scopedService("tx", nil)))
	require.NoError(t, c.Fake("App/Repository", func(r Resolver) (any, error) {
		return r.Use("App/Db/Transaction")
	}))

	first := c.CreateScope()
	_, err := first.Use("App/Repository")
	assert.ErrorContains(t, err, "must be resolved through a Scope")
	require.NoError(t, first.Dispose())

	require.NoError(t, c.Fake("App/Repository", func(r Resolver) (any, error) {
		return &disposableService{name: "repo"}, nil
	}))

	second := c.CreateScope()
	defer second.Dispose()

	repo, err := second.Use("App/Repository")
	require.NoError(t, err)
	assert.False(t, repo.(*disposableService).disposed)
	assert.Same(t, repo, c.MustUse("App/Repository"), "fakes are shared across scopes")
}
