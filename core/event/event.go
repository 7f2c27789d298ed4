// Package event defines all events that can be published by the application.
// Events represent state changes and are consumed by the presentation layer.
package event

import (
	"lungscan-go/core/state"
	"lungscan-go/domain/diagnosis"
)

// Event is the base interface for all events.
// Events are published by the application layer and consumed by subscribers.
type Event interface {
	// EventName returns the name of the event for logging/debugging
	EventName() string
}

// JobEvent is an event that originates from a specific inference job.
type JobEvent interface {
	Event
	// JobID returns the source job ID
	JobID() string
}

// baseJobEvent provides common implementation for job events.
type baseJobEvent struct {
	jobID string
}

func (e *baseJobEvent) JobID() string {
	return e.jobID
}

// JobSubmitted is published when a job is accepted by the runner.
type JobSubmitted struct {
	baseJobEvent
	ImagePath string
}

func NewJobSubmitted(jobID, imagePath string) *JobSubmitted {
	return &JobSubmitted{
		baseJobEvent: baseJobEvent{jobID: jobID},
		ImagePath:    imagePath,
	}
}

func (e *JobSubmitted) EventName() string {
	return "JobSubmitted"
}

// JobStateChanged is published when a job's state changes.
type JobStateChanged struct {
	baseJobEvent
	OldState state.JobState
	NewState state.JobState
}

func NewJobStateChanged(jobID string, oldState, newState state.JobState) *JobStateChanged {
	return &JobStateChanged{
		baseJobEvent: baseJobEvent{jobID: jobID},
		OldState:     oldState,
		NewState:     newState,
	}
}

func (e *JobStateChanged) EventName() string {
	return "JobStateChanged"
}

// JobFinished is published exactly once per job with its terminal outcome.
// It is always the last event for that job.
type JobFinished struct {
	baseJobEvent
	ImagePath string
	Outcome   diagnosis.Outcome
}

func NewJobFinished(jobID, imagePath string, outcome diagnosis.Outcome) *JobFinished {
	return &JobFinished{
		baseJobEvent: baseJobEvent{jobID: jobID},
		ImagePath:    imagePath,
		Outcome:      outcome,
	}
}

func (e *JobFinished) EventName() string {
	return "JobFinished"
}
