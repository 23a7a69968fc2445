package channel

import (
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/health"
)

// State is the published lifecycle state of a channel
type State int32

// Channel states
const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

// String returns the lower-case state name
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidTransition reports whether from -> to is an edge of the state machine.
// Disconnected -> Disconnected is allowed: Disconnect re-publishes the state.
func ValidTransition(from, to State) bool {
	switch from {
	case Disconnected:
		return to == Connecting || to == Reconnecting || to == Disconnected
	case Connecting:
		return to == Connected || to == Disconnected
	case Connected:
		return to == Disconnected
	case Reconnecting:
		return to == Connecting || to == Disconnected
	default:
		return false
	}
}

// Snapshot is the observable state of a channel at one point in time.
// Snapshots are published on the bus state topic.
type Snapshot struct {
	Kind       Kind      `json:"kind"`
	State      State     `json:"state"`
	Params     Params    `json:"params"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	Exhausted  bool      `json:"exhausted"`
	LastChange time.Time `json:"last_change"`
}

// Health maps the snapshot onto a health status
func (s Snapshot) Health() health.Status {
	return health.FromChannel(s.Kind.String(), health.ChannelInfo{
		State:      s.State.String(),
		Attempts:   s.Attempts,
		LastError:  s.LastError,
		Exhausted:  s.Exhausted,
		LastChange: s.LastChange,
	})
}
