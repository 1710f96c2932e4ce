package chat

// ConnectionState represents the current state of a chat transport session.
// Exactly one state holds at any time for a given client instance.
type ConnectionState int

const (
	// StateDisconnected means no connection exists and none is being attempted.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a first connection attempt is in progress.
	StateConnecting

	// StateConnected means the session is established and ready.
	StateConnected

	// StateReconnecting means the session dropped and automatic recovery is running.
	StateReconnecting
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
