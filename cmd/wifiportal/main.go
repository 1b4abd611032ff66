// Wifiportal is captive-portal firmware for headless wireless devices.
//
// It broadcasts a setup access point, answers every DNS query with the
// device's own address so client systems open the portal page, and serves
// the scan/connect control endpoints that move the device onto the
// operator's network.
//
// Usage:
//
//	wifiportal run [flags]
//	wifiportal monitor [flags]
//
// See 'wifiportal --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiportal/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifiportal",
	Short: "Captive portal firmware",
	Long: `Captive-portal firmware for headless wireless devices.

The 'run' command is the firmware daemon: it brings up the setup access
point, intercepts DNS, and serves the portal page until the device joins
a network. The 'monitor' command is an operator TUI that connects to a
running portal over HTTP.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiportal %s (commit: %s)\n", version.Version, version.Commit)
	},
}
