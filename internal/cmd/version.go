package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the build version, set with -ldflags "-X ...cmd.Version=v1.2.3".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the entitylock version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "entitylock %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
