package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version. Overridden at build time via
// -ldflags "-X github.com/xkilldash9x/franz-cli/cmd.Version=...".
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the franz version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "franz %s\n", Version)
		},
	}
}
