package radio

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
)

// Manager failure sentinels.
var (
	// ErrScanBusy: a scan is already in flight.
	ErrScanBusy = errors.New("scan already in progress")
	// ErrJoinBusy: a join is already in flight.
	ErrJoinBusy = errors.New("another join is in progress")
	// ErrJoinTimeout: the join attempt exceeded its bound.
	ErrJoinTimeout = errors.New("join attempt timed out")
)

// Default bounds for the blocking radio operations. Both must stay well
// under the watchdog window minus the run-loop tick, since the operations
// run off the orchestrator loop but gate HTTP responses.
const (
	DefaultScanTimeout = 8 * time.Second
	DefaultJoinTimeout = 10 * time.Second
)

// TransitionFunc is invoked after every radio state change, outside the
// manager's lock. apActive reports whether the access point is still
// broadcasting at the time of the transition.
type TransitionFunc func(s State, apActive bool)

// Manager drives the radio between access-point and station mode. It owns
// RadioState exclusively: all transitions happen through StartAP, Join and
// StopAP, and at most one scan and one join may be in flight at a time.
type Manager struct {
	driver      Driver
	scanTimeout time.Duration
	joinTimeout time.Duration

	// deactivateAPOnJoin tears the access point down once a join
	// succeeds, freeing the single radio for the station link.
	deactivateAPOnJoin bool

	onTransition TransitionFunc

	mu       sync.Mutex
	state    State
	apUp     bool
	apName   string
	apPass   string
	apPool   AddressPool
	scanning bool
	joining  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithScanTimeout overrides the scan bound.
func WithScanTimeout(d time.Duration) Option {
	return func(m *Manager) { m.scanTimeout = d }
}

// WithJoinTimeout overrides the join bound.
func WithJoinTimeout(d time.Duration) Option {
	return func(m *Manager) { m.joinTimeout = d }
}

// WithDeactivateAPOnJoin sets the access-point teardown policy.
func WithDeactivateAPOnJoin(v bool) Option {
	return func(m *Manager) { m.deactivateAPOnJoin = v }
}

// WithTransitionFunc registers the state-change callback.
func WithTransitionFunc(fn TransitionFunc) Option {
	return func(m *Manager) { m.onTransition = fn }
}

// NewManager creates a manager over the given driver.
func NewManager(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		driver:             driver,
		scanTimeout:        DefaultScanTimeout,
		joinTimeout:        DefaultJoinTimeout,
		deactivateAPOnJoin: true,
		state:              State{Kind: ApOnly},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current radio state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// APActive reports whether the access point is broadcasting.
func (m *Manager) APActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apUp
}

// transition updates the state under the lock and fires the callback
// outside it.
func (m *Manager) transition(next State) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	apUp := m.apUp
	fn := m.onTransition
	m.mu.Unlock()

	logging.LogRadioTransition(prev.String(), next.String(), "")
	if fn != nil {
		fn(next, apUp)
	}
}

// StartAP brings up broadcast of the given network name and assigns
// clients addresses from the pool. Idempotent when already running with
// identical parameters.
func (m *Manager) StartAP(name, passphrase string, pool AddressPool) error {
	m.mu.Lock()
	if m.apUp && m.apName == name && m.apPass == passphrase && m.apPool == pool {
		m.mu.Unlock()
		logging.Debug("Access point already running with identical parameters",
			zap.String("ssid", name))
		return nil
	}
	m.mu.Unlock()

	if err := m.driver.StartAP(name, passphrase, pool); err != nil {
		return err
	}

	m.mu.Lock()
	m.apUp = true
	m.apName = name
	m.apPass = passphrase
	m.apPool = pool
	m.mu.Unlock()

	logging.Info("Access point started",
		zap.String("ssid", name),
		zap.Bool("open", passphrase == ""),
		zap.String("gateway", pool.Gateway),
		zap.String("first_lease", pool.First),
		zap.Int("pool_size", pool.Size),
	)
	m.transition(State{Kind: ApOnly})
	return nil
}

// StopAP stops broadcasting.
func (m *Manager) StopAP() error {
	m.mu.Lock()
	if !m.apUp {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.driver.StopAP(); err != nil {
		return err
	}

	m.mu.Lock()
	m.apUp = false
	st := m.state
	fn := m.onTransition
	m.mu.Unlock()

	logging.Info("Access point stopped")
	// Listeners (orchestrator, event stream) need to observe the AP
	// going down even though the tagged state is unchanged.
	if fn != nil {
		fn(st, false)
	}
	return nil
}

// Scan performs a bounded radio scan and returns the discovered networks,
// deduplicated by SSID (strongest signal wins) in descending
// signal-strength order. An empty result is not an error. A second Scan
// while one is in flight fails immediately with ErrScanBusy.
func (m *Manager) Scan(ctx context.Context) ([]Network, error) {
	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return nil, ErrScanBusy
	}
	m.scanning = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.scanning = false
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, m.scanTimeout)
	defer cancel()

	raw, err := m.driver.Scan(ctx)
	if err != nil {
		// A failed or timed-out scan is transient; report nothing
		// found rather than an error.
		logging.Warn("Radio scan failed", zap.Error(err))
		return []Network{}, nil
	}

	return DedupeAndSort(raw), nil
}

// DedupeAndSort collapses duplicate SSIDs (keeping the strongest
// observation) and orders the result by descending signal strength.
func DedupeAndSort(raw []Network) []Network {
	best := make(map[string]Network, len(raw))
	for _, n := range raw {
		if n.SSID == "" {
			continue // hidden networks are not joinable from the portal
		}
		if cur, ok := best[n.SSID]; !ok || n.RSSI > cur.RSSI {
			best[n.SSID] = n
		}
	}

	out := make([]Network, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].SSID < out[j].SSID
	})
	return out
}

// Join attempts a bounded station-mode association. On success the state
// becomes StationConnected and, per the teardown policy, the access point
// may be deactivated - strictly after the transition commits. On failure
// the state passes through StationFailed and reverts to ApOnly; the access
// point is never left down without a station connection to replace it.
// A second Join while one is in flight fails immediately with ErrJoinBusy.
func (m *Manager) Join(ctx context.Context, ssid, passphrase string) error {
	m.mu.Lock()
	if m.joining {
		m.mu.Unlock()
		return ErrJoinBusy
	}
	if m.state.Kind == StationConnected {
		m.mu.Unlock()
		return ErrJoinBusy
	}
	m.joining = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.joining = false
		m.mu.Unlock()
	}()

	m.transition(State{Kind: ApWithPendingJoin, Target: ssid})

	joinCtx, cancel := context.WithTimeout(ctx, m.joinTimeout)
	defer cancel()

	err := m.driver.Connect(joinCtx, ssid, passphrase)
	if err != nil {
		err = classifyJoinError(err)
		m.transition(State{Kind: StationFailed, Target: ssid, Reason: err.Error()})
		// Fail safe: the access point stays up so the device remains
		// reachable; drop any half-made association.
		_ = m.driver.Disconnect()
		m.transition(State{Kind: ApOnly})
		return err
	}

	m.transition(State{Kind: StationConnected, Network: ssid})

	if m.deactivateAPOnJoin {
		if err := m.StopAP(); err != nil {
			logging.Error("Failed to deactivate access point after join",
				zap.Error(err))
		}
	}
	return nil
}

// classifyJoinError maps driver and context errors onto the
// distinguishable join outcomes.
func classifyJoinError(err error) error {
	switch {
	case errors.Is(err, ErrNetworkNotFound), errors.Is(err, ErrAuthFailed):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrJoinTimeout
	default:
		return err
	}
}
