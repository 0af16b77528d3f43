package domain

// SessionPhase is the authentication phase of the messaging connection.
// There is exactly one session per process; the session manager owns all
// transitions.
type SessionPhase int

const (
	// PhaseUninitialized is the state before Startup is processed.
	PhaseUninitialized SessionPhase = iota
	// PhaseAwaitingPairing means a pairing code has been or is about to be
	// issued and the operator must link the account.
	PhaseAwaitingPairing
	// PhaseAuthenticated means the connection is live and messages flow.
	PhaseAuthenticated
	// PhaseDisconnected is a transient drop with credentials retained.
	PhaseDisconnected
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseAwaitingPairing:
		return "awaiting_pairing"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
