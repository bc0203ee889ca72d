// Package cli defines the warden command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/casthq/warden/internal/version"
)

// NewRootCmd builds the warden root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "warden",
		Short:         "Agentic wallet platform",
		Long:          "Warden runs autonomous trading agents against policy-gated wallets on a Solana test cluster.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build identity",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
