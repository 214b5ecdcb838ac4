package domain

// Phase is the lifecycle position of the single call session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDialing
	PhaseRingingLocal
	PhaseNegotiating
	PhaseActive
	PhaseEnding
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDialing:
		return "dialing"
	case PhaseRingingLocal:
		return "ringing"
	case PhaseNegotiating:
		return "negotiating"
	case PhaseActive:
		return "active"
	case PhaseEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// Role says which side of the call we are. Only the caller ever creates an
// offer, and only after the call-control service confirms acceptance; the
// callee only ever answers. That asymmetry is what rules out glare.
type Role int

const (
	RoleCaller Role = iota + 1
	RoleCallee
)

func (r Role) String() string {
	switch r {
	case RoleCaller:
		return "caller"
	case RoleCallee:
		return "callee"
	default:
		return "unknown"
	}
}

// ConnState is the subset of peer-connection state the orchestrator cares
// about.
type ConnState int

const (
	ConnNew ConnState = iota
	ConnConnecting
	ConnConnected
	ConnDisconnected
	ConnFailed
	ConnClosed
)

// Dead reports whether the connection state means the call cannot continue.
func (s ConnState) Dead() bool {
	return s == ConnDisconnected || s == ConnFailed || s == ConnClosed
}

func (s ConnState) String() string {
	switch s {
	case ConnNew:
		return "new"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}
