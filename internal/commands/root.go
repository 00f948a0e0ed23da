package commands

import (
	"github.com/spf13/cobra"

	"github.com/settled-dev/settled/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "settled",
		Short:   "Order-to-cash reconciliation",
		Long:    "Settled matches customer orders against PSP settlements and GL postings,\nand queues every unresolved difference for review.",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newReportCommand())

	return rootCmd
}
