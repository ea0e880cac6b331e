package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	envFile    string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "libbot",
	Short: "Telegram bot that finds books and series in a GitHub-hosted library.",
	Long: `Telegram bot that finds books and series in a GitHub-hosted library.

Settings are read, in order of precedence, from environment variables,
a .env file (--env) and an optional YAML file (--config, or ./config.yaml).

Run "libbot serve" to start the bot and HTTP API, or query the library
directly with "libbot book", "libbot series" and "libbot list".`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bookCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
