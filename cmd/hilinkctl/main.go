// Hilinkctl is a command-line client for the web-management API of
// HiLink-style LTE routers and modems.
//
// It verifies credentials against the device's login negotiation protocol,
// reports login state, and exposes the read-only device endpoints.
//
// Usage:
//
//	hilinkctl [command] [flags]
//
// See 'hilinkctl --help' for available commands. Set HILINK_LOG_LEVEL to
// enable diagnostic logging.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hilinkctl/hilinkctl/internal/logging"
	"github.com/hilinkctl/hilinkctl/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hilinkctl",
	Short: "HiLink Router Management Utility",
	Long: `A command-line client for HiLink-style LTE routers and modems.

Talks to the device's web-management API: checks and establishes logins,
shows device information and signal quality, and reboots the device.
Router profiles can be saved with 'hilinkctl router add'.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hilinkctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
