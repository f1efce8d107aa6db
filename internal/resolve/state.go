package resolve

import "fmt"

// TaskState is the lifecycle state of a task within one run.
type TaskState string

const (
	// StateUnresolved is the initial state: inputs not yet examined.
	StateUnresolved TaskState = "UNRESOLVED"

	// StateResolvingInputs means the resolver is walking the task's
	// declared inputs and scheduling producers for missing ones.
	StateResolvingInputs TaskState = "RESOLVING_INPUTS"

	// StateReady means every producer the task depends on has reached a
	// successful terminal state.
	StateReady TaskState = "READY"

	// StateRunning means the external command has been dispatched.
	StateRunning TaskState = "RUNNING"

	// StateDone is terminal: the command succeeded and the declared
	// output artifact exists.
	StateDone TaskState = "DONE"

	// StateFailed is terminal: the command failed, the output contract
	// was violated, or an upstream producer failed.
	StateFailed TaskState = "FAILED"

	// StateSkipped is terminal: the output artifact already existed and
	// force-rebuild was not set, so no command was dispatched.
	StateSkipped TaskState = "SKIPPED"
)

// IsTerminal reports whether the state is terminal.
func IsTerminal(s TaskState) bool {
	switch s {
	case StateDone, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// IsSatisfied reports whether the state satisfies downstream consumers.
func IsSatisfied(s TaskState) bool {
	switch s {
	case StateDone, StateSkipped:
		return true
	default:
		return false
	}
}

// RunState tracks per-task states for one run.
type RunState map[string]TaskState

// Transition performs a validated state change for one task. The caller
// supplies the expected prior state so races surface as errors instead
// of silent overwrites.
func (rs RunState) Transition(taskID string, from, to TaskState) error {
	cur, ok := rs[taskID]
	if !ok {
		return fmt.Errorf("unknown task in run state: %q", taskID)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, found %s", taskID, from, cur)
	}
	if !allowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", taskID, from, to)
	}
	rs[taskID] = to
	return nil
}

func allowedTransition(from, to TaskState) bool {
	switch from {
	case StateUnresolved:
		return to == StateResolvingInputs || to == StateSkipped
	case StateResolvingInputs:
		return to == StateReady || to == StateFailed
	case StateReady:
		return to == StateRunning || to == StateFailed
	case StateRunning:
		return to == StateDone || to == StateFailed
	default:
		// Terminal states never transition.
		return false
	}
}
