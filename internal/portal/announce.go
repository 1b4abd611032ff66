package portal

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
)

const (
	// ServiceInstance is the mDNS instance name the portal registers.
	ServiceInstance = "wifiportal"

	// ServiceType is the mDNS service type; the portal is just an HTTP
	// endpoint to its clients.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// Announcer advertises the running portal over mDNS so client systems can
// reach the device by name while the access point is up.
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers the portal's HTTP endpoint.
func Announce(instance string, port int) (*Announcer, error) {
	if instance == "" {
		instance = ServiceInstance
	}
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port,
		[]string{"path=/"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS service registered",
		zap.String("instance", instance),
		zap.String("type", ServiceType),
		zap.Int("port", port),
	)
	return &Announcer{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Announcer) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	logging.Info("mDNS service withdrawn")
}
