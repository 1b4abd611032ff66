package dnsd

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
)

// DefaultListenAddr is the standard DNS port on all interfaces.
const DefaultListenAddr = ":53"

// statusInterval is how often the serve loop logs that it is alive.
const statusInterval = 60 * time.Second

// Responder answers every DNS query with the device's own address. It holds
// no state between datagrams; each query is parsed, answered, and
// forgotten, which is what lets every client lookup land on the portal.
type Responder struct {
	listenAddr string
	deviceIP   net.IP

	mu   sync.Mutex
	conn net.PacketConn
}

// NewResponder creates a responder that answers with deviceAddr.
// listenAddr may be empty to use DefaultListenAddr.
func NewResponder(listenAddr, deviceAddr string) (*Responder, error) {
	if listenAddr == "" {
		listenAddr = DefaultListenAddr
	}
	ip := net.ParseIP(deviceAddr)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("device address %q is not a valid IPv4 address", deviceAddr)
	}
	return &Responder{listenAddr: listenAddr, deviceIP: ip}, nil
}

// Bind acquires the UDP socket. A bind failure is a fatal startup
// condition for the orchestrator.
func (r *Responder) Bind() error {
	conn, err := net.ListenPacket("udp", r.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind DNS responder on %s: %w", r.listenAddr, err)
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	logging.Info("DNS responder listening",
		zap.String("addr", conn.LocalAddr().String()),
		zap.String("answer", r.deviceIP.String()),
	)
	return nil
}

// Addr returns the bound address, or nil before Bind.
func (r *Responder) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Serve answers queries until the socket is closed. Malformed datagrams
// are dropped silently; they must never take the service loop down.
func (r *Responder) Serve() error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("responder is not bound")
	}

	var answered uint64
	lastStatus := time.Now()
	buf := make([]byte, 1500)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logging.Info("DNS responder stopped",
					zap.Uint64("queries_answered", answered))
				return nil
			}
			logging.Error("DNS read failed", zap.Error(err))
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		query, err := ParseQuery(datagram)
		if err != nil {
			logging.Debug("Dropping malformed DNS datagram",
				zap.String("remote_addr", addr.String()),
				zap.Int("length", n),
				zap.Error(err),
			)
			continue
		}

		answer, err := query.Answer(r.deviceIP)
		if err != nil {
			logging.Error("Failed to build DNS answer", zap.Error(err))
			continue
		}
		if _, err := conn.WriteTo(answer, addr); err != nil {
			logging.Error("DNS write failed",
				zap.String("remote_addr", addr.String()),
				zap.Error(err),
			)
			continue
		}

		answered++
		logging.LogDNSReply(addr.String(), query.Domain, r.deviceIP.String())

		if time.Since(lastStatus) >= statusInterval {
			logging.Info("DNS responder serving",
				zap.Uint64("queries_answered", answered))
			lastStatus = time.Now()
		}
	}
}

// Close releases the socket, unblocking Serve.
func (r *Responder) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
