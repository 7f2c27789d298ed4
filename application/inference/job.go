package inference

import (
	"context"
	"log/slog"
	"sync"

	"lungscan-go/core/state"
	"lungscan-go/domain/diagnosis"
	"lungscan-go/infrastructure/logging"
)

// job is one unit of inference work. It is owned by the Runner and only its
// worker goroutine moves it through the state machine.
type job struct {
	id        string
	imagePath string

	ctx    context.Context
	cancel context.CancelFunc

	// prevDone is closed once every job submitted before this one has finished.
	prevDone <-chan struct{}
	// finished is closed after this job and all earlier ones have finished.
	finished chan struct{}

	mu      sync.Mutex
	machine *state.Machine

	handle *Handle
}

func newJob(id, imagePath string, logger *slog.Logger, prevDone <-chan struct{}) *job {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.WithAttrs(logging.With(ctx, logger), "job_id", id)

	return &job{
		id:        id,
		imagePath: imagePath,
		ctx:       ctx,
		cancel:    cancel,
		prevDone:  prevDone,
		finished:  make(chan struct{}),
		machine:   state.NewMachine(),
		handle:    newHandle(id, imagePath),
	}
}

func (j *job) logger() *slog.Logger {
	return logging.From(j.ctx)
}

func (j *job) state() state.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.machine.Current()
}

func (j *job) transition(target state.JobState) (state.JobState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.machine.TransitionTo(target)
}

// cancelled reports whether cancellation has been requested.
func (j *job) cancelled() bool {
	return j.ctx.Err() != nil
}

// checkpoint returns a CancellationError if cancellation has been requested.
func (j *job) checkpoint(name string) *diagnosis.Error {
	if j.cancelled() {
		return diagnosis.NewCancelledError(name)
	}
	return nil
}

// waitForPrevious blocks until the previous job has finished or this job is
// cancelled, whichever comes first.
func (j *job) waitForPrevious() {
	if j.prevDone == nil {
		return
	}
	select {
	case <-j.prevDone:
	case <-j.ctx.Done():
	}
}

// waitForChain blocks until every earlier job has finished. A job cancelled
// while pending reports its outcome early but still holds the chain, so the
// next job cannot start while an older one is running.
func (j *job) waitForChain() {
	if j.prevDone != nil {
		<-j.prevDone
	}
}

// targetState maps an outcome to the job's terminal state.
func targetState(o diagnosis.Outcome) state.JobState {
	switch o.Kind {
	case diagnosis.OutcomeSucceeded:
		return state.StateSucceeded
	case diagnosis.OutcomeCancelled:
		return state.StateCancelled
	default:
		return state.StateFailed
	}
}
