package pipeline

// State is the lifecycle position of one pipeline run. Transitions
// are monotonic per run: once a run reaches Stopping there is no way
// back to Running without a fresh Starting episode.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateDegraded
	StateStopping
	StateStopped
	StateFailed
)

var stateNames = map[State]string{
	StateCreated:  "created",
	StateStarting: "starting",
	StateRunning:  "running",
	StateDegraded: "degraded",
	StateStopping: "stopping",
	StateStopped:  "stopped",
	StateFailed:   "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether no further transitions can occur this run.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// canTransition encodes the per-run state machine. Failed is
// reachable from every state except Stopping and Stopped.
func canTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateStopping && from != StateStopped
	}
	switch from {
	case StateCreated:
		return to == StateStarting
	case StateStarting:
		return to == StateRunning || to == StateStopping
	case StateRunning:
		return to == StateDegraded || to == StateStopping
	case StateDegraded:
		return to == StateRunning || to == StateStopping
	case StateStopping:
		return to == StateStopped
	case StateStopped, StateFailed:
		// A new run starts from Starting again.
		return to == StateStarting
	}
	return false
}
