package lifecycle

import (
	"fmt"
	"time"
)

// State is the lifecycle position of one operation
type State int

const (
	StateBuilt State = iota
	StateSigned
	StateSubmitted
	StatePending
	StateIncluded
	StateFinalized
	StateSigningFailed
	StateSubmissionFailed
	StateTimedOutPending
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "BUILT"
	case StateSigned:
		return "SIGNED"
	case StateSubmitted:
		return "SUBMITTED"
	case StatePending:
		return "PENDING"
	case StateIncluded:
		return "INCLUDED"
	case StateFinalized:
		return "FINALIZED"
	case StateSigningFailed:
		return "SIGNING_FAILED"
	case StateSubmissionFailed:
		return "SUBMISSION_FAILED"
	case StateTimedOutPending:
		return "TIMED_OUT_PENDING"
	default:
		return "UNKNOWN"
	}
}

var transitions = map[State][]State{
	StateBuilt:     {StateSigned, StateSigningFailed},
	StateSigned:    {StateSubmitted, StateSubmissionFailed},
	StateSubmitted: {StatePending, StateIncluded, StateTimedOutPending},
	StatePending:   {StatePending, StateIncluded, StateTimedOutPending},
	StateIncluded:  {StateFinalized},
}

// CanTransition reports whether to may follow s
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Failed reports whether s is a terminal failure
func (s State) Failed() bool {
	return s == StateSigningFailed || s == StateSubmissionFailed || s == StateTimedOutPending
}

// Transition is one recorded state change
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Machine tracks the state of one operation and rejects illegal transitions
type Machine struct {
	state   State
	history []Transition
}

// NewMachine starts a machine in StateBuilt
func NewMachine() *Machine {
	return &Machine{state: StateBuilt}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// History returns the transitions so far
func (m *Machine) History() []Transition {
	return m.history
}

// To moves the machine to the next state. An illegal transition is a
// programming error and panics.
func (m *Machine) To(next State, at time.Time) {
	if !m.state.CanTransition(next) {
		panic(fmt.Sprintf("lifecycle: illegal transition %s -> %s", m.state, next))
	}
	m.history = append(m.history, Transition{From: m.state, To: next, At: at})
	m.state = next
}
