// Package job defines the asynchronous generation job record and its lifecycle.
package job

import "errors"

// Status represents the lifecycle status of a job.
type Status string

const (
	StatusQueued  Status = "queued"  // Accepted, runner not started
	StatusRunning Status = "running" // Pipeline executing

	// Terminal states (no further transitions allowed)
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid job status transition")

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ValidTransitions defines allowed status transitions.
var ValidTransitions = map[Status][]Status{
	StatusQueued:   {StatusRunning},
	StatusRunning:  {StatusComplete, StatusError},
	StatusComplete: {},
	StatusError:    {},
}

// CanTransitionTo checks if a transition from current status to target status is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts to transition to the target status and returns error if invalid.
func (s Status) TransitionTo(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}
