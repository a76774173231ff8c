// Package apptest builds applications for provider tests.
package apptest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toutaio/kubit/app"
)

// AppKey is the app key written into every test application.
const AppKey = "apptest-secret-key-0123456789"

// New creates an application in the test environment rooted at a temporary
// directory and runs Setup. Each entry of configFiles is written to
// config/<name>.yaml; an app.yaml carrying AppKey is added when missing.
func New(t testing.TB, configFiles map[string]string, opts ...app.Option) *app.Application {
	t.Helper()

	root := t.TempDir()
	configDir := filepath.Join(root, "config")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	if _, ok := configFiles["app"]; !ok {
		configFiles = withAppFile(configFiles)
	}
	for name, content := range configFiles {
		require.NoError(t, os.WriteFile(filepath.Join(configDir, name+".yaml"), []byte(content), 0o600))
	}

	opts = append([]app.Option{
		app.WithEnvironment(app.EnvironmentTest),
		app.WithLogOutput(io.Discard),
	}, opts...)

	application, err := app.New(root, opts...)
	require.NoError(t, err)
	require.NoError(t, application.Setup(context.Background()))
	return application
}

// Boot is New followed by the register and boot phases.
func Boot(t testing.TB, configFiles map[string]string, opts ...app.Option) *app.Application {
	t.Helper()

	application := New(t, configFiles, opts...)
	require.NoError(t, application.Boot(context.Background()))
	t.Cleanup(func() {
		_ = application.Shutdown(context.Background())
	})
	return application
}

func withAppFile(files map[string]string) map[string]string {
	out := make(map[string]string, len(files)+1)
	for name, content := range files {
		out[name] = content
	}
	out["app"] = "appKey: " + AppKey + "\nname: apptest\n"
	return out
}
