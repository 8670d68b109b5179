package sync

import (
	"sync"

	"github.com/peteski22/donorpulse/internal/domain"
)

// State is a step in the orchestrator lifecycle. A cycle moves from idle to
// running, passes through its outcome state, and returns to idle.
type State string

const (
	// StateIdle means no cycle is in flight.
	StateIdle State = "idle"

	// StateRunning means a cycle holds the gate.
	StateRunning State = "running"

	// StateSucceeded means the last cycle published a snapshot and the gate
	// is about to release.
	StateSucceeded State = "succeeded"

	// StateFailed means the last cycle failed and the gate is about to
	// release.
	StateFailed State = "failed"

	// StatePartiallySucceeded means the last cycle made fetch progress but
	// persisted nothing, and the gate is about to release.
	StatePartiallySucceeded State = "partially_succeeded"
)

// gate is the orchestrator's single-flight state machine. The only ways in
// are Current and CompareAndSwap, so every transition is explicit and two
// concurrent triggers can never both win.
type gate struct {
	mu    sync.Mutex
	state State
}

func newGate() *gate {
	return &gate{state: StateIdle}
}

// Current returns the gate's state.
func (g *gate) Current() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state
}

// CompareAndSwap moves the gate from one state to another, reporting whether
// the move happened.
func (g *gate) CompareAndSwap(from State, to State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != from {
		return false
	}
	g.state = to

	return true
}

// stateFor maps a run outcome to the gate state a completing cycle passes
// through.
func stateFor(outcome domain.Outcome) State {
	switch outcome {
	case domain.OutcomeSucceeded:
		return StateSucceeded
	case domain.OutcomePartial:
		return StatePartiallySucceeded
	default:
		return StateFailed
	}
}
