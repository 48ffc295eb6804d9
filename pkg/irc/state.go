package irc

// State is a connection lifecycle stage.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateJoining
	StateActive
	StateClosing
	StateClosed
)

var stateNames = [...]string{
	StateDisconnected:   "disconnected",
	StateConnecting:     "connecting",
	StateAuthenticating: "authenticating",
	StateJoining:        "joining",
	StateActive:         "active",
	StateClosing:        "closing",
	StateClosed:         "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// canSend reports whether JOIN and PRIVMSG may be written in this state.
func (s State) canSend() bool {
	return s == StateJoining || s == StateActive
}

func (s State) terminating() bool {
	return s == StateClosing || s == StateClosed
}

// StateChange is published on the "state" topic for every transition.
// Err is the terminal cause on transitions into closing and closed.
type StateChange struct {
	From State
	To   State
	Err  error
}
