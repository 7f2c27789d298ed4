// Package state defines the inference job state machine.
package state

import "fmt"

// JobState represents the lifecycle state of an inference job.
type JobState int

const (
	// StatePending is the initial state: the job is queued but no stage has run.
	StatePending JobState = iota
	// StateRunning indicates the job is executing its stages.
	StateRunning
	// StateSucceeded indicates the job produced a classification result.
	StateSucceeded
	// StateFailed indicates the job stopped with an error.
	StateFailed
	// StateCancelled indicates the job was cancelled at a checkpoint.
	StateCancelled
)

// String returns the string representation of the state.
func (s JobState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// validTransitions defines the allowed state transitions.
// Key is the current state, value is a list of valid target states.
var validTransitions = map[JobState][]JobState{
	StatePending:   {StateRunning, StateCancelled},
	StateRunning:   {StateSucceeded, StateFailed, StateCancelled},
	StateSucceeded: {},
	StateFailed:    {},
	StateCancelled: {},
}

// CanTransitionTo checks if transitioning from the current state to the target state is valid.
func (s JobState) CanTransitionTo(target JobState) bool {
	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions can leave the state.
func (s JobState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// TransitionError represents an invalid state transition attempt.
type TransitionError struct {
	From   JobState
	To     JobState
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid state transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(from, to JobState, reason string) *TransitionError {
	return &TransitionError{From: from, To: to, Reason: reason}
}

// Machine tracks the state of a single job and enforces valid transitions.
// It is not safe for concurrent use; callers guard it with their own lock.
type Machine struct {
	current JobState
}

// NewMachine creates a machine in StatePending.
func NewMachine() *Machine {
	return &Machine{current: StatePending}
}

// Current returns the current state.
func (m *Machine) Current() JobState {
	return m.current
}

// TransitionTo moves the machine to target, returning the previous state.
func (m *Machine) TransitionTo(target JobState) (JobState, error) {
	from := m.current
	if !from.CanTransitionTo(target) {
		reason := ""
		if from.IsTerminal() {
			reason = "job already finished"
		}
		return from, NewTransitionError(from, target, reason)
	}
	m.current = target
	return from, nil
}
