package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the bankfeed CLI with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bankfeed",
		Short: "Bank-notification email transaction tracker",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newIngestCommand())

	return rootCmd
}
