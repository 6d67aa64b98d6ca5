// Package expert models the supervised agents: their identity, observed
// state, role catalog, and the tmux-level operations that launch, instruct
// and stop them.
package expert

// Expert identifies one supervised agent slot. The slot is stable for the
// life of the session; the agent process inside it comes and goes.
type Expert struct {
	ID   int
	Name string
	Role string
}

// Status is the observed state of an expert's agent, derived each tick from
// pane output and readiness markers. It is an observation, never stored.
type Status int

const (
	// StatusPending means no agent has been launched in this slot yet.
	StatusPending Status = iota
	// StatusStarting means a launch is in flight and the agent has not
	// reported ready.
	StatusStarting
	// StatusReady means the agent is at its input prompt awaiting work.
	StatusReady
	// StatusBusy means the agent is actively producing output.
	StatusBusy
	// StatusStuck means the agent has produced no output for longer than
	// the configured window while apparently mid-task.
	StatusStuck
	// StatusUnknown means the pane could not be observed this tick.
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStarting:
		return "starting"
	case StatusReady:
		return "ready"
	case StatusBusy:
		return "busy"
	case StatusStuck:
		return "stuck"
	case StatusUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Active reports whether the expert has a live agent this status could have
// been observed from.
func (s Status) Active() bool {
	switch s {
	case StatusReady, StatusBusy, StatusStuck:
		return true
	default:
		return false
	}
}
