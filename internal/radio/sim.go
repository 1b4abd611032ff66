package radio

import (
	"context"
	"sync"
	"time"
)

// SimNetwork describes one network the simulated radio can see, along with
// the passphrase it accepts for joins.
type SimNetwork struct {
	Network
	Passphrase string
}

// SimDriver is an in-memory Driver for development and tests. It models a
// fixed neighborhood of networks, optional operation latency, and the
// AP/station flags a real radio would keep.
type SimDriver struct {
	mu             sync.Mutex
	networks       []SimNetwork
	scanLatency    time.Duration
	connectLatency time.Duration
	apUp           bool
	connected      string
}

// NewSimDriver creates a simulated radio that sees the given networks.
func NewSimDriver(networks ...SimNetwork) *SimDriver {
	return &SimDriver{networks: networks}
}

// SetLatency sets artificial scan and connect durations, for exercising
// the bounded-operation paths.
func (d *SimDriver) SetLatency(scan, connect time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scanLatency = scan
	d.connectLatency = connect
}

// SetNetworks replaces the visible neighborhood.
func (d *SimDriver) SetNetworks(networks ...SimNetwork) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.networks = networks
}

// APUp reports whether the simulated access point is broadcasting.
func (d *SimDriver) APUp() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.apUp
}

// Connected returns the SSID of the simulated station association, or "".
func (d *SimDriver) Connected() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// StartAP implements Driver.
func (d *SimDriver) StartAP(name, passphrase string, pool AddressPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apUp = true
	return nil
}

// StopAP implements Driver.
func (d *SimDriver) StopAP() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apUp = false
	return nil
}

// Scan implements Driver. The raw result may contain duplicate SSIDs,
// as a real radio reports one entry per BSSID.
func (d *SimDriver) Scan(ctx context.Context) ([]Network, error) {
	d.mu.Lock()
	latency := d.scanLatency
	out := make([]Network, len(d.networks))
	for i, n := range d.networks {
		out[i] = n.Network
	}
	d.mu.Unlock()

	if err := simWait(ctx, latency); err != nil {
		return nil, err
	}
	return out, nil
}

// Connect implements Driver.
func (d *SimDriver) Connect(ctx context.Context, ssid, passphrase string) error {
	d.mu.Lock()
	latency := d.connectLatency
	var target *SimNetwork
	for i := range d.networks {
		if d.networks[i].SSID == ssid {
			target = &d.networks[i]
			break
		}
	}
	d.mu.Unlock()

	if err := simWait(ctx, latency); err != nil {
		return err
	}

	if target == nil {
		return ErrNetworkNotFound
	}
	if target.Secure && target.Passphrase != passphrase {
		return ErrAuthFailed
	}

	d.mu.Lock()
	d.connected = ssid
	d.mu.Unlock()
	return nil
}

// Disconnect implements Driver.
func (d *SimDriver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = ""
	return nil
}

func simWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
