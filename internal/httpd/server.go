package httpd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/radio"
)

// Radio is the slice of the access-point manager the control server needs.
type Radio interface {
	Scan(ctx context.Context) ([]radio.Network, error)
	Join(ctx context.Context, ssid, passphrase string) error
	State() radio.State
}

// Config holds the control server configuration.
type Config struct {
	Host       string // empty = all interfaces
	Port       int    // plain HTTP port
	TLSPort    int    // HTTPS port, used only when certificate material exists
	CertPath   string // path to certificate file (optional)
	KeyPath    string // path to private key file (optional)
	PortalRoot string // optional directory of portal page assets
}

// Server serves the portal page and the scan/connect control endpoints
// over one or two listening sockets.
type Server struct {
	config Config
	radio  Radio
	hub    *EventHub

	httpServer  *http.Server
	listener    net.Listener
	tlsListener net.Listener
}

// New creates a control server over the given radio.
func New(config Config, rad Radio) *Server {
	s := &Server{
		config: config,
		radio:  rad,
		hub:    NewEventHub(),
	}
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Events returns the hub used to push radio state changes to connected
// portal pages.
func (s *Server) Events() *EventHub {
	return s.hub
}

// Bind acquires the listening sockets. The plain listener is mandatory;
// the TLS listener is created only when both certificate and key files are
// present (TLS material is optional, supplied as opaque files). Any bind
// failure is a fatal startup condition for the orchestrator.
func (s *Server) Bind() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind control server on %s: %w", addr, err)
	}
	s.listener = listener
	logging.Info("Control server listening",
		zap.String("addr", listener.Addr().String()))

	if !hasTLSMaterial(s.config.CertPath, s.config.KeyPath) {
		logging.Warn("TLS material not present, serving plain HTTP only")
		return nil
	}

	tlsConfig, err := newTLSConfig(s.config.CertPath, s.config.KeyPath)
	if err != nil {
		_ = listener.Close()
		return err
	}
	tlsAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.TLSPort)
	tlsListener, err := tls.Listen("tcp", tlsAddr, tlsConfig)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to bind TLS control server on %s: %w", tlsAddr, err)
	}
	s.tlsListener = tlsListener
	logging.Info("Control server listening (TLS)",
		zap.String("addr", tlsListener.Addr().String()))
	return nil
}

// Addr returns the bound plain-listener address, or nil before Bind.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve handles connections until Shutdown. Each connection runs in its
// own goroutine inside net/http, so one slow client cannot starve the
// others or the DNS responder.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("control server is not bound")
	}

	errCh := make(chan error, 2)
	go func() { errCh <- s.httpServer.Serve(s.listener) }()
	if s.tlsListener != nil {
		go func() { errCh <- s.httpServer.Serve(s.tlsListener) }()
	}

	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes the listeners, drains in-flight requests, and drops any
// event-stream connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		logging.Error("Control server shutdown error", zap.Error(err))
		return err
	}
	logging.Info("Control server stopped")
	return nil
}

func hasTLSMaterial(certPath, keyPath string) bool {
	if certPath == "" || keyPath == "" {
		return false
	}
	if !fileExists(certPath) || !fileExists(keyPath) {
		return false
	}
	return true
}

// newTLSConfig loads the supplied certificate material. The material is
// opaque to the portal; provisioning it is someone else's job.
func newTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
