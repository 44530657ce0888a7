package stream

// State is the lifecycle position of a subscription.
type State int

const (
	// StateIdle means no subscription has been opened yet.
	StateIdle State = iota

	// StateConnecting means a connection is being opened.
	StateConnecting

	// StateStreaming means the upstream accepted the request and frames are
	// being read.
	StateStreaming

	// StateReconnecting means the connection failed and a reconnect is
	// scheduled.
	StateReconnecting

	// StateTerminal means a terminal frame was received. It is absorbing.
	StateTerminal

	// StateExhausted means the retry ceiling was reached. It is absorbing.
	StateExhausted

	// StateClosed means the owner cancelled the subscription. It is absorbing.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminal:
		return "terminal"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Done reports whether s is absorbing.
func (s State) Done() bool {
	return s == StateTerminal || s == StateExhausted || s == StateClosed
}
