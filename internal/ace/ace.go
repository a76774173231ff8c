// Package ace implements the Ace command line runner.
package ace

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/toutaio/kubit/app"
)

// Execute runs Ace with the given providers and exits non-zero on failure.
func Execute(providers ...app.Provider) {
	if err := NewRootCmd(providers...).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the ace command tree. Commands that inspect the
// container boot an application with providers.
func NewRootCmd(providers ...app.Provider) *cobra.Command {
	opts := &rootOptions{providers: providers}

	cmd := &cobra.Command{
		Use:          "ace",
		Short:        "Ace, the Kubit command runner",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.root, "root", "r", ".", "application root")
	cmd.PersistentFlags().StringVar(&opts.environment, "env", string(app.EnvironmentConsole), "application environment")

	cmd.AddCommand(
		listBindingsCmd(opts),
		listProvidersCmd(opts),
		generateKeyCmd(opts),
		envCheckCmd(opts),
	)
	return cmd
}

type rootOptions struct {
	root        string
	environment string
	providers   []app.Provider
}

// boot creates and boots an application, runs fn and shuts it down.
func (o *rootOptions) boot(cmd *cobra.Command, fn func(*app.Application) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.New(o.root,
		app.WithEnvironment(app.ParseEnvironment(o.environment)),
		app.WithProviders(o.providers...),
		app.WithLogOutput(cmd.ErrOrStderr()),
	)
	if err != nil {
		return err
	}

	if err := application.Boot(ctx); err != nil {
		if application.State() >= app.StateSetup {
			_ = application.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	}

	runErr := fn(application)
	shutdownErr := application.Shutdown(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}
