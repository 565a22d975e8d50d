package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hitechniques/llclient/internal/client"
	"github.com/hitechniques/llclient/internal/config"
	"github.com/hitechniques/llclient/internal/discovery"
	"github.com/hitechniques/llclient/internal/logging"
	"github.com/hitechniques/llclient/internal/metrics"
	"github.com/hitechniques/llclient/internal/relay"
	"github.com/hitechniques/llclient/internal/server"
	"github.com/hitechniques/llclient/internal/ui"
)

const defaultLogName = "ll-client.log"

// Connect command flags
var (
	metricsAddr   string
	subscriptions []string
	plainMode     bool
	instanceName  string
	statsInterval time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect [host] [port]",
	Short: "Connect to an acquisition server",
	Long: `Connect to an acquisition server and stream its channels.

Host and port override the server section of the config file. With
--instance the host is resolved through mDNS instead.

On a terminal the interactive dashboard is shown. Use --plain (or redirect
stdout) to print events line by line instead. Channels given with
--subscribe are requested as soon as the server announces them.

On exit every subscribed channel is unsubscribed before the connection is
closed.`,
	Example: `  # Connect with the dashboard
  ll-client connect 192.168.1.20

  # Custom port, subscribe to two channels, one decimated by 10
  ll-client connect daq.local 10007 --subscribe volts:10 --subscribe amps

  # Headless, with metrics and a WebSocket relay on :9108
  ll-client connect daq.local --plain --metrics-addr :9108

  # Find the server by its advertised instance name
  ll-client connect --instance bench-daq`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics, /channels and /ws on this address (disabled if empty)")
	connectCmd.Flags().StringArrayVar(&subscriptions, "subscribe", nil, "Channel to subscribe when available, as name[:decimation] (repeatable)")
	connectCmd.Flags().BoolVar(&plainMode, "plain", false, "Print events line by line instead of the dashboard")
	connectCmd.Flags().StringVar(&instanceName, "instance", "", "Resolve the server by mDNS instance name")
	connectCmd.Flags().DurationVar(&statsInterval, "stats-interval", time.Second, "Data summary interval in plain mode")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	plain := plainMode || !ui.IsTerminal()
	if err := setupLogging(cfg, plain); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Host == "" && instanceName != "" {
		scanner := discovery.NewScanner()
		srv, err := scanner.FindServer(ctx, instanceName)
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", instanceName, err)
		}
		cfg.Server.Host = srv.IP
		cfg.Server.Port = fmt.Sprint(srv.Port)
	}
	if cfg.Server.Host == "" {
		return errors.New("no server given: pass a host, --instance, or set server.host in the config file")
	}

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}

	var (
		collector *metrics.Collector
		hub       *relay.Hub
	)
	if cfg.Metrics.Addr != "" {
		collector = metrics.New()
		hub = relay.NewHub()
		go hub.Run(ctx)
	}

	var (
		sink   client.EventSink
		bridge *ui.Bridge
		out    *plainPrinter
	)
	if plain {
		out = newPlainPrinter(cmd.OutOrStdout())
		sink = out.Sink()
	} else {
		bridge = ui.NewBridge()
		sink = bridge.Sink()
	}
	if hub != nil {
		sink = client.MultiSink(sink, hub.Sink())
	}

	logging.Info("Connecting", zap.String("addr", clientCfg.Addr()))
	c, err := client.Dial(ctx, clientCfg, sink,
		client.WithMetrics(collector),
		client.WithInitialSubscriptions(cfg.SubscribeRequests()),
	)
	if err != nil {
		return fmt.Errorf("failed to connect: %s", client.ShortMessage(err))
	}

	var side *server.Server
	if cfg.Metrics.Addr != "" {
		side = server.New(&server.Config{Addr: cfg.Metrics.Addr}, hub, collector, c.Snapshot)
		if err := side.Start(); err != nil {
			c.Close()
			return err
		}
		defer shutdownSideServer(side)
	}

	if plain {
		err = runPlain(ctx, c, out, statsInterval)
	} else {
		err = ui.Run(ctx, c, bridge, c.Addr())
	}

	if cerr := c.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Server.Host = args[0]
	}
	if len(args) > 1 {
		cfg.Server.Port = args[1]
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	for _, s := range subscriptions {
		sub, err := config.ParseSubscription(s)
		if err != nil {
			return nil, err
		}
		cfg.AddSubscription(sub)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging keeps logs off the terminal while the dashboard owns it
func setupLogging(cfg *config.Config, plain bool) error {
	if cfg.LogLevel == "" {
		return logging.InitializeFromEnv()
	}

	path := cfg.LogFile
	if path == "" && !plain {
		dir, err := config.GetConfigDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		path = filepath.Join(dir, defaultLogName)
	}

	if path == "" {
		return logging.Initialize(cfg.LogLevel)
	}
	return logging.InitializeToFile(cfg.LogLevel, path)
}

func shutdownSideServer(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Side server shutdown failed", zap.Error(err))
	}
}
