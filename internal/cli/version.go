package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Задаются через -ldflags при сборке.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version info",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Version:", Version)
		fmt.Fprintln(out, "Commit:", Commit)
		fmt.Fprintln(out, "Build date:", Date)
	},
}
