package ace

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/toutaio/kubit/config"
	"github.com/toutaio/kubit/env"
)

func envCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "env:check [KEY...]",
		Short: "Check that required environment variables are set",
		Long: "Checks the keys given as arguments and the list under app.requiredEnv " +
			"in config/app.yaml against the process environment and the .env file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := env.Process(filepath.Join(opts.root, ".env"))
			if err != nil {
				return err
			}
			cfg, err := config.Load(filepath.Join(opts.root, "config"), e.Lookup)
			if err != nil {
				return err
			}

			keys := slices.Concat(args, cfg.StringSlice("app.requiredEnv"))
			slices.Sort(keys)
			keys = slices.Compact(keys)

			if err := e.Require(keys...); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d environment variables set\n", len(keys))
			return nil
		},
	}
}
