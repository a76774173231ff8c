package registry

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testInterface interface {
	DoSomething()
}

func TestNew(t *testing.T) {
	reg := New()
	require.NotNil(t, reg)
	assert.NotNil(t, reg.bindings)
	assert.NotNil(t, reg.aliases)
	assert.Empty(t, reg.Namespaces())
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("stores binding", func(t *testing.T) {
		t.Parallel()

		reg := New()
		replaced, err := reg.Register(&Binding{Namespace: "Kubit/Core/Logger", Lifetime: "singleton"})
		require.NoError(t, err)
		assert.False(t, replaced)
		assert.True(t, reg.Has("Kubit/Core/Logger"))
	})

	t.Run("replaces existing binding", func(t *testing.T) {
		t.Parallel()

		reg := New()
		_, err := reg.Register(&Binding{Namespace: "Kubit/Core/Logger", Lifetime: "transient"})
		require.NoError(t, err)

		replaced, err := reg.Register(&Binding{Namespace: "Kubit/Core/Logger", Lifetime: "singleton"})
		require.NoError(t, err)
		assert.True(t, replaced)

		binding, err := reg.Get("Kubit/Core/Logger")
		require.NoError(t, err)
		assert.Equal(t, "singleton", binding.Lifetime)
	})

	t.Run("rejects nil binding", func(t *testing.T) {
		t.Parallel()

		_, err := New().Register(nil)
		require.Error(t, err)
	})

	t.Run("rejects empty namespace", func(t *testing.T) {
		t.Parallel()

		_, err := New().Register(&Binding{})
		require.Error(t, err)
	})

	t.Run("indexes binding type", func(t *testing.T) {
		t.Parallel()

		reg := New()
		typ := reflect.TypeFor[testInterface]()
		_, err := reg.Register(&Binding{Namespace: "App/Service", Type: typ})
		require.NoError(t, err)

		namespace, ok := reg.NamespaceFor(typ)
		require.True(t, ok)
		assert.Equal(t, "App/Service", namespace)
	})
}

func TestGet_NotFound(t *testing.T) {
	reg := New()

	binding, err := reg.Get("Missing")
	require.Error(t, err)
	assert.Nil(t, binding)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Missing", notFound.Namespace)
	assert.Contains(t, err.Error(), `"Missing"`)
}

func TestRemove(t *testing.T) {
	reg := New()
	typ := reflect.TypeFor[testInterface]()
	_, err := reg.Register(&Binding{Namespace: "App/Service", Type: typ})
	require.NoError(t, err)
	require.NoError(t, reg.Alias("Service", "App/Service"))

	assert.True(t, reg.Remove("App/Service"))
	assert.False(t, reg.Has("App/Service"))

	_, ok := reg.ResolveAlias("Service")
	assert.False(t, ok, "aliases of a removed binding are dropped")

	_, ok = reg.NamespaceFor(typ)
	assert.False(t, ok, "type index of a removed binding is dropped")

	assert.False(t, reg.Remove("App/Service"))
}

func TestAlias(t *testing.T) {
	t.Parallel()

	t.Run("resolves to namespace", func(t *testing.T) {
		t.Parallel()

		reg := New()
		_, err := reg.Register(&Binding{Namespace: "Kubit/Core/Logger"})
		require.NoError(t, err)
		require.NoError(t, reg.Alias("Logger", "Kubit/Core/Logger"))
		require.NoError(t, reg.Alias("Log", "Kubit/Core/Logger"))

		namespace, ok := reg.ResolveAlias("Logger")
		require.True(t, ok)
		assert.Equal(t, "Kubit/Core/Logger", namespace)
		assert.Equal(t, []string{"Log", "Logger"}, reg.AliasesFor("Kubit/Core/Logger"))
	})

	t.Run("requires existing target", func(t *testing.T) {
		t.Parallel()

		err := New().Alias("Logger", "Kubit/Core/Logger")
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("rejects empty and self aliases", func(t *testing.T) {
		t.Parallel()

		reg := New()
		_, err := reg.Register(&Binding{Namespace: "A"})
		require.NoError(t, err)
		require.Error(t, reg.Alias("", "A"))
		require.Error(t, reg.Alias("A", "A"))
	})
}

func TestNamespaces_Sorted(t *testing.T) {
	reg := New()
	for _, ns := range []string{"c", "a", "b"} {
		_, err := reg.Register(&Binding{Namespace: ns})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c"}, reg.Namespaces())
}

func TestGetByTag(t *testing.T) {
	reg := New()
	_, _ = reg.Register(&Binding{Namespace: "Plugin/B", Tags: []string{"plugin"}})
	_, _ = reg.Register(&Binding{Namespace: "Plugin/A", Tags: []string{"plugin", "enabled"}})
	_, _ = reg.Register(&Binding{Namespace: "Core/Logger"})

	plugins := reg.GetByTag("plugin")
	require.Len(t, plugins, 2)
	assert.Equal(t, "Plugin/A", plugins[0].Namespace)
	assert.Equal(t, "Plugin/B", plugins[1].Namespace)

	assert.Empty(t, reg.GetByTag("missing"))
}

func TestTag(t *testing.T) {
	reg := New()
	_, err := reg.Register(&Binding{Namespace: "App/Jobs/Mail", Tags: []string{"job"}})
	require.NoError(t, err)

	require.NoError(t, reg.Tag("App/Jobs/Mail", "job", "mail"))

	binding, err := reg.Get("App/Jobs/Mail")
	require.NoError(t, err)
	assert.Equal(t, []string{"job", "mail"}, binding.Tags)

	var nf *NotFoundError
	assert.ErrorAs(t, reg.Tag("App/Missing", "job"), &nf)
}

func TestIndexType_NilIgnored(t *testing.T) {
	reg := New()
	reg.IndexType(nil, "anything")
	assert.Empty(t, reg.types)
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	reg := New()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = reg.Register(&Binding{Namespace: fmt.Sprintf("ns/%d", i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = reg.Has(fmt.Sprintf("ns/%d", i))
			_ = reg.Namespaces()
		}(i)
	}
	wg.Wait()

	assert.Len(t, reg.Namespaces(), 50)
}
