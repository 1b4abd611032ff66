package radio

import "fmt"

// StateKind enumerates the radio's operating modes.
type StateKind int

const (
	// ApOnly: the access point is broadcasting and no station-mode
	// association exists or is being attempted.
	ApOnly StateKind = iota
	// ApWithPendingJoin: the access point is up while a station-mode
	// join attempt is in flight against Target.
	ApWithPendingJoin
	// StationConnected: the radio is associated with Network in station
	// mode. The access point may or may not still be broadcasting,
	// depending on the teardown policy.
	StationConnected
	// StationFailed: the last join attempt against Target failed with
	// Reason. This state is transient; the manager reverts to ApOnly so
	// the device stays reachable.
	StationFailed
)

// State is the tagged radio state. Only the fields relevant to Kind are set.
type State struct {
	Kind    StateKind
	Target  string // ApWithPendingJoin, StationFailed: the network being joined
	Network string // StationConnected: the associated network
	Reason  string // StationFailed: human-readable failure reason
}

// String renders the state for logs.
func (s State) String() string {
	switch s.Kind {
	case ApOnly:
		return "ap-only"
	case ApWithPendingJoin:
		return fmt.Sprintf("ap-with-pending-join(%s)", s.Target)
	case StationConnected:
		return fmt.Sprintf("station-connected(%s)", s.Network)
	case StationFailed:
		return fmt.Sprintf("station-failed(%s: %s)", s.Target, s.Reason)
	default:
		return fmt.Sprintf("unknown(%d)", int(s.Kind))
	}
}
