package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/portal"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/tui"
)

// Run command flags
var (
	configPath string
	host       string
	port       int
	tlsPort    int
	certPath   string
	keyPath    string
	dnsAddr    string
	logLevel   string
	noMDNS     bool
	askPass    bool
	simRadio   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the captive portal",
	Long: `Start the captive portal daemon.

The portal broadcasts the configured setup network, answers every DNS
query with the device address, and serves the portal page plus the
scan/connect control endpoints. It runs until SIGINT/SIGTERM and is fed
to the watchdog every tick; a hang restarts the firmware.

TLS is enabled automatically when both --cert and --key point at
existing files; otherwise the portal serves plain HTTP only.`,
	Example: `  # Start with the default configuration file (config.yaml)
  wifiportal run

  # Custom config location and verbose logging
  wifiportal run --config /etc/wifiportal/config.yaml --log-level debug

  # Serve HTTPS alongside HTTP
  wifiportal run --cert fullchain.pem --key privkey.pem

  # Set the access point passphrase interactively (never on argv)
  wifiportal run --ask-pass

  # Development on a workstation: simulated radio, unprivileged ports
  wifiportal run --sim --port 8080 --dns-addr 127.0.0.1:5353`,
	RunE: runPortal,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	runCmd.Flags().StringVar(&host, "host", "", "Control server host (empty = all interfaces)")
	runCmd.Flags().IntVar(&port, "port", 80, "Control server HTTP port")
	runCmd.Flags().IntVar(&tlsPort, "tls-port", 443, "Control server HTTPS port (used only with --cert/--key)")
	runCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (optional)")
	runCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file (optional)")
	runCmd.Flags().StringVar(&dnsAddr, "dns-addr", ":53", "DNS responder listen address")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "Disable mDNS service registration")
	runCmd.Flags().BoolVar(&askPass, "ask-pass", false, "Prompt for the access point passphrase and store it")
	runCmd.Flags().BoolVar(&simRadio, "sim", false, "Use the simulated radio (development)")
}

func runPortal(cmd *cobra.Command, args []string) error {
	if (certPath != "") != (keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}

	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	store := config.NewStore(configPath)

	if askPass {
		if err := storePassphrase(store); err != nil {
			return err
		}
	}

	driver, err := newDriver(simRadio)
	if err != nil {
		return err
	}

	orchestrator := portal.New(portal.Config{
		Store:       store,
		Driver:      driver,
		DNSAddr:     dnsAddr,
		HTTPHost:    host,
		HTTPPort:    port,
		TLSPort:     tlsPort,
		CertPath:    certPath,
		KeyPath:     keyPath,
		DisableMDNS: noMDNS,
	})
	return orchestrator.Run(cmd.Context())
}

// storePassphrase reads the access point passphrase from the terminal and
// persists it; passphrases never appear on the command line.
func storePassphrase(store *config.Store) error {
	fmt.Fprint(os.Stderr, "Access point passphrase (empty for an open network): ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read passphrase: %w", err)
	}

	settings, err := store.Load()
	if err != nil {
		return err
	}
	settings.Passphrase = string(raw)
	if err := store.Save(settings); err != nil {
		return fmt.Errorf("failed to store passphrase: %w", err)
	}
	return nil
}

// platformDriver is supplied by platform-specific builds. The portable
// build ships only the simulated radio.
var platformDriver func() (radio.Driver, error)

func newDriver(sim bool) (radio.Driver, error) {
	if sim {
		return devNeighborhood(), nil
	}
	if platformDriver == nil {
		return nil, fmt.Errorf("no platform radio driver in this build; use --sim for the simulated radio")
	}
	return platformDriver()
}

// devNeighborhood is the fixed set of networks the simulated radio sees,
// with a little latency so the portal page's progress states are visible.
func devNeighborhood() radio.Driver {
	driver := radio.NewSimDriver(
		radio.SimNetwork{Network: radio.Network{SSID: "HomeNet", RSSI: -42, Secure: true}, Passphrase: "correct horse"},
		radio.SimNetwork{Network: radio.Network{SSID: "CoffeeShop", RSSI: -61, Secure: false}},
		radio.SimNetwork{Network: radio.Network{SSID: "Neighbour", RSSI: -77, Secure: true}, Passphrase: "letmein letmein"},
	)
	driver.SetLatency(1500*time.Millisecond, 2*time.Second)
	return driver
}

// Monitor command flags
var monitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive monitor for a running portal",
	Long: `Connect to a running portal's control server and follow it live.

The monitor lists the networks the device can see, lets you trigger a
join, and shows radio state transitions pushed over the event stream.`,
	Example: `  # Monitor the portal from a client of its access point
  wifiportal monitor

  # Monitor a development portal on the local machine
  wifiportal monitor --addr 127.0.0.1:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The TUI owns the terminal; keep zap quiet unless forced via env.
		if err := logging.InitializeFromEnv(); err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		return tui.RunMonitor(ctx, monitorAddr)
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", "192.168.4.1:80", "Portal control server address")
}
