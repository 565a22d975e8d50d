// Ll-client connects to a low-latency acquisition server, subscribes to its
// data channels and shows the stream in a terminal dashboard.
//
// Usage:
//
//	ll-client connect <host> [port] [flags]
//	ll-client discover [--timeout 5s]
//	ll-client config init|show
//	ll-client version
//
// See 'll-client --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitechniques/llclient/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "ll-client",
	Short: "Low-latency streaming data client",
	Long: `A client for low-latency acquisition servers.

Connects over TCP, lists the channels the server offers, subscribes to them
and displays the incoming samples. Acquisition can be started and stopped
from the dashboard. An optional HTTP side server exposes Prometheus metrics,
the channel state and a WebSocket relay of every event.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the user config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stdout")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}
