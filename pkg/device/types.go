package device

// ConnectionState is the client's view of its link to the printer host.
type ConnectionState int

const (
	// StateDisconnected means no transport connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting means the transport is up and the bootstrap is running.
	StateConnecting
	// StateReady means the state model is synced and live.
	StateReady
	// StateDegraded means the transport is up but the last bootstrap failed
	// or the transport reported an error; a later bootstrap may recover.
	StateDegraded
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
