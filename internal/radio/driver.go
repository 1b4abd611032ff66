package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Network is a wireless network discovered by a scan.
type Network struct {
	SSID   string `json:"ssid"`
	RSSI   int    `json:"rssi"` // dBm, more positive = stronger
	Secure bool   `json:"secure"`
}

// AddressPool is the fixed, statically-sized client address range the
// access point hands out, anchored at the device's own address.
type AddressPool struct {
	Gateway string // the device's own address
	First   string // first client address
	Size    int    // number of assignable client addresses
}

// DefaultPoolSize is the number of client leases an access point offers.
const DefaultPoolSize = 10

// PoolFor derives the client address pool from the device address:
// clients are assigned consecutive addresses starting one past the gateway.
func PoolFor(deviceAddr string) (AddressPool, error) {
	ip := net.ParseIP(deviceAddr)
	if ip == nil || ip.To4() == nil {
		return AddressPool{}, fmt.Errorf("invalid device address %q", deviceAddr)
	}
	v4 := ip.To4()
	first := net.IPv4(v4[0], v4[1], v4[2], v4[3]+1)
	return AddressPool{
		Gateway: deviceAddr,
		First:   first.String(),
		Size:    DefaultPoolSize,
	}, nil
}

// Driver failure sentinels. Drivers return these so the manager can report
// distinguishable join outcomes.
var (
	// ErrNetworkNotFound: the target network was not seen on air.
	ErrNetworkNotFound = errors.New("network not found")
	// ErrAuthFailed: the target rejected the passphrase.
	ErrAuthFailed = errors.New("authentication rejected")
)

// Driver abstracts the platform radio primitives. The real radio is
// provided by the platform; tests and development use SimDriver.
//
// Scan and Connect must honor context cancellation: when the deadline
// passes they return ctx.Err() promptly rather than blocking forever.
type Driver interface {
	// StartAP brings up broadcast of the given network name and address
	// pool. An empty passphrase means an open network.
	StartAP(name, passphrase string, pool AddressPool) error
	// StopAP stops broadcasting and drops associated clients.
	StopAP() error
	// Scan performs a radio scan and returns the raw results, possibly
	// containing duplicate SSIDs.
	Scan(ctx context.Context) ([]Network, error)
	// Connect attempts a station-mode association.
	Connect(ctx context.Context, ssid, passphrase string) error
	// Disconnect drops any station-mode association.
	Disconnect() error
}
