package session

// BridgeState tracks the AI leg's lifecycle for one call.
type BridgeState int

const (
	// StateConnecting is the initial state while the AI transport handshake is in flight.
	StateConnecting BridgeState = iota
	// StateConnected is when the AI transport socket is open.
	StateConnected
	// StateConfiguring is when the capability configuration has been sent.
	StateConfiguring
	// StateReady is when the transport confirmed the configuration.
	StateReady
	// StateGreetingSent is when the conversation-start trigger has been dispatched.
	StateGreetingSent
	// StateActive is when conversation turns are flowing; re-entered per turn.
	StateActive
	// StateClosed is when the bridge has shut down normally.
	StateClosed
	// StateError is the terminal failure state, reachable from any non-terminal state.
	StateError
)

// String returns a human-readable state name.
func (s BridgeState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateConfiguring:
		return "CONFIGURING"
	case StateReady:
		return "READY"
	case StateGreetingSent:
		return "GREETING_SENT"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s BridgeState) terminal() bool {
	return s == StateClosed || s == StateError
}
