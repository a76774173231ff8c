package ace

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/toutaio/kubit/app"
)

func listBindingsCmd(opts *rootOptions) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "list:bindings",
		Short: "List container bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.boot(cmd, func(application *app.Application) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAMESPACE\tLIFETIME\tTYPE\tALIASES\tRESOLVED\tFAKED")

				for _, info := range application.Container().Bindings() {
					if prefix != "" && !strings.HasPrefix(info.Namespace, prefix) {
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						info.Namespace,
						info.Lifetime,
						dash(info.Type),
						dash(strings.Join(info.Aliases, ", ")),
						yesNo(info.Resolved),
						yesNo(info.Faked),
					)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only list namespaces starting with prefix")
	return cmd
}

func listProvidersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list:providers",
		Short: "List registered providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.boot(cmd, func(application *app.Application) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PROVIDER\tDEFERRED\tREGISTERED\tBOOTED\tPROVIDES")

				for _, info := range application.Registrar().Providers() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						info.Name,
						yesNo(info.Deferred),
						yesNo(info.Registered),
						yesNo(info.Booted),
						dash(strings.Join(info.Provides, ", ")),
					)
				}
				return w.Flush()
			})
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
