package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signon-cli",
	Short: "Signon CLI tool",
	Long: `Signon CLI is a command-line companion for the signon portal.

Available commands:
  check    Probe the configured auth backend and report its health
  version  Print the CLI version

Use "signon-cli [command] --help" for more information about a command.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
