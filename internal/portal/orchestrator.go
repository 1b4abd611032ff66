package portal

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/dnsd"
	"github.com/muurk/wifiportal/internal/httpd"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/watchdog"
)

// DefaultTickInterval is the run-loop cadence. Every tick feeds the
// watchdog, so the tick must stay well inside the watchdog window.
const DefaultTickInterval = time.Second

// Config wires the orchestrator's collaborators together.
type Config struct {
	Store  *config.Store
	Driver radio.Driver

	DNSAddr  string // default ":53"
	HTTPHost string // empty = all interfaces
	HTTPPort int    // 0 = ephemeral
	TLSPort  int
	CertPath string
	KeyPath  string

	TickInterval time.Duration // default DefaultTickInterval
	DisableMDNS  bool
	MDNSInstance string

	// OnWatchdogExpire overrides the watchdog's restart action (tests).
	OnWatchdogExpire func()
}

// Orchestrator composes the access-point manager, DNS responder, control
// server and watchdog into one cooperative run loop, and owns startup and
// shutdown sequencing. Configuration and radio state are only ever touched
// from inside Run or from the component that owns them, so the "at most one
// in-flight join" invariant holds without further locking here.
type Orchestrator struct {
	cfg Config

	mu       sync.Mutex
	phase    Phase
	settings config.Settings

	manager   *radio.Manager
	dns       *dnsd.Responder
	http      *httpd.Server
	wdt       *watchdog.Supervisor
	announcer *Announcer
}

// New creates an orchestrator in the Init phase.
func New(cfg Config) *Orchestrator {
	if cfg.DNSAddr == "" {
		cfg.DNSAddr = dnsd.DefaultListenAddr
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Orchestrator{
		cfg:   cfg,
		phase: PhaseInit,
		wdt:   watchdog.New(cfg.OnWatchdogExpire),
	}
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Settings returns the configuration loaded at startup.
func (o *Orchestrator) Settings() config.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// Manager exposes the access-point manager (diagnostics, tests).
func (o *Orchestrator) Manager() *radio.Manager {
	return o.manager
}

// HTTPAddr returns the bound control-server address, or "" before Running.
func (o *Orchestrator) HTTPAddr() string {
	if o.http == nil || o.http.Addr() == nil {
		return ""
	}
	return o.http.Addr().String()
}

// DNSAddr returns the bound responder address, or "" before Running.
func (o *Orchestrator) DNSAddr() string {
	if o.dns == nil || o.dns.Addr() == nil {
		return ""
	}
	return o.dns.Addr().String()
}

func (o *Orchestrator) setPhase(next Phase) {
	o.mu.Lock()
	prev := o.phase
	o.phase = next
	o.mu.Unlock()
	logging.LogLifecycle(string(prev), string(next))
}

// Run executes the full lifecycle and blocks until a stop signal, context
// cancellation, or a fatal startup failure. A startup failure (socket
// bind, radio init) moves to Failed and returns the error - the process
// must halt rather than run half-initialized.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.Phase() != PhaseInit {
		return fmt.Errorf("orchestrator cannot be reused, construct a fresh instance")
	}
	o.setPhase(PhaseStarting)

	// Load configuration. Load never fails hard: a bad document is
	// replaced by defaults so the device always becomes reachable.
	settings, err := o.cfg.Store.Load()
	if err != nil {
		return o.fail(err)
	}
	o.mu.Lock()
	o.settings = settings
	o.mu.Unlock()

	// Arm the watchdog before the blocking startup work so a hang in
	// radio init is already covered.
	wdtWindow := time.Duration(settings.WatchdogTimeoutSeconds) * time.Second
	if err := o.wdt.Arm(wdtWindow); err != nil {
		return o.fail(err)
	}

	o.manager = radio.NewManager(o.cfg.Driver,
		radio.WithDeactivateAPOnJoin(settings.DeactivateAPOnJoin),
		radio.WithTransitionFunc(o.onRadioTransition),
	)

	pool, err := radio.PoolFor(settings.DeviceAddress)
	if err != nil {
		return o.fail(err)
	}
	if err := o.manager.StartAP(settings.NetworkName, settings.Passphrase, pool); err != nil {
		return o.fail(fmt.Errorf("failed to initialize access point: %w", err))
	}

	o.dns, err = dnsd.NewResponder(o.cfg.DNSAddr, settings.DeviceAddress)
	if err != nil {
		return o.fail(err)
	}
	if err := o.dns.Bind(); err != nil {
		return o.fail(err)
	}

	o.http = httpd.New(httpd.Config{
		Host:       o.cfg.HTTPHost,
		Port:       o.cfg.HTTPPort,
		TLSPort:    o.cfg.TLSPort,
		CertPath:   o.cfg.CertPath,
		KeyPath:    o.cfg.KeyPath,
		PortalRoot: settings.PortalRoot,
	}, o.manager)
	if err := o.http.Bind(); err != nil {
		return o.fail(err)
	}

	// mDNS is best-effort: the portal works without it, so a failure to
	// register is not fatal.
	if !o.cfg.DisableMDNS {
		port := o.cfg.HTTPPort
		if tcpAddr, ok := o.http.Addr().(*net.TCPAddr); ok {
			port = tcpAddr.Port
		}
		announcer, err := Announce(o.cfg.MDNSInstance, port)
		if err != nil {
			logging.Warn("mDNS registration failed", zap.Error(err))
		} else {
			o.announcer = announcer
		}
	}

	o.setPhase(PhaseRunning)
	logging.Info("Captive portal running",
		zap.String("ssid", settings.NetworkName),
		zap.String("device_address", settings.DeviceAddress),
		zap.String("dns_addr", o.DNSAddr()),
		zap.String("http_addr", o.HTTPAddr()),
	)

	serveErr := make(chan error, 2)
	go func() { serveErr <- o.dns.Serve() }()
	go func() { serveErr <- o.http.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	// The tick loop: service loops run on their own goroutines; the
	// orchestrator's job each tick is confirming liveness.
	for {
		select {
		case <-ticker.C:
			o.wdt.Feed()
		case sig := <-sigCh:
			logging.Info("Shutdown signal received",
				zap.String("signal", sig.String()))
			return o.stop()
		case <-ctx.Done():
			logging.Info("Context cancelled, stopping")
			return o.stop()
		case err := <-serveErr:
			if err != nil {
				logging.Error("Service loop failed", zap.Error(err))
				_ = o.stop()
				return err
			}
		}
	}
}

// stop performs the controlled Running -> Stopping -> Stopped sequence:
// close listening sockets, deactivate the access point, withdraw mDNS,
// and disarm the watchdog (shutdown is controlled, not a hang).
func (o *Orchestrator) stop() error {
	o.setPhase(PhaseStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if o.http != nil {
		_ = o.http.Shutdown(shutdownCtx)
	}
	if o.dns != nil {
		_ = o.dns.Close()
	}
	o.announcer.Shutdown()

	if o.manager != nil {
		if err := o.manager.StopAP(); err != nil {
			logging.Error("Failed to deactivate access point", zap.Error(err))
		}
	}

	o.wdt.Stop()
	o.setPhase(PhaseStopped)
	logging.Sync()
	return nil
}

// fail records a fatal startup condition, releases anything already
// acquired, and leaves the orchestrator in the absorbing Failed phase.
func (o *Orchestrator) fail(err error) error {
	logging.Error("Startup failed", zap.Error(err))

	if o.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = o.http.Shutdown(ctx)
		cancel()
	}
	if o.dns != nil {
		_ = o.dns.Close()
	}
	if o.manager != nil {
		_ = o.manager.StopAP()
	}
	o.wdt.Stop()

	o.setPhase(PhaseFailed)
	logging.Sync()
	return err
}

// onRadioTransition fans radio state changes out to event subscribers and
// retires the DNS intercept once the access point is gone: with the AP
// down there is no captive network left to redirect.
func (o *Orchestrator) onRadioTransition(s radio.State, apActive bool) {
	if o.http != nil {
		o.http.Events().Broadcast(httpd.StateEvent(s, apActive))
	}

	if !apActive && o.Phase() == PhaseRunning && o.dns != nil {
		logging.Info("Access point down, retiring DNS intercept")
		_ = o.dns.Close()
	}

	if s.Kind == radio.StationConnected {
		logging.Info("Station connected", zap.String("ssid", s.Network))
	}
}
