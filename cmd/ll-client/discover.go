package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitechniques/llclient/internal/discovery"
	"github.com/hitechniques/llclient/internal/ui"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find acquisition servers on the local network",
	Long: `Browse the local network for acquisition servers using mDNS/DNS-SD.

Servers advertise the _lldata._tcp service. Every server that answers before
the timeout is listed with its address and TXT metadata.`,
	Example: `  # Scan for 5 seconds (default)
  ll-client discover

  # Longer scan for slow networks
  ll-client discover --timeout 15s`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintTitle("Discovery", fmt.Sprintf("Browsing %s.%s for %s", discovery.ServiceType, discovery.ServiceDomain, discoverTimeout))

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout

	servers, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printer.PrintServers(servers)
	if len(servers) == 0 {
		printer.Println("Troubleshooting:")
		printer.Println("  - Check that the server is powered on and on the same network segment")
		printer.Println("  - Check that the firewall allows mDNS (UDP port 5353)")
		printer.Println("  - Try increasing --timeout")
		printer.Println("  - Connect by address instead: ll-client connect <host>")
	}
	return nil
}
