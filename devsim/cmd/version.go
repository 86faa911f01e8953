package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the devsim version. Release builds override it with -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the devsim version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "devsim", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
