// Package inference runs image classification jobs in the background, one at
// a time, and reports their progress and single terminal outcome.
package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"lungscan-go/core/event"
	"lungscan-go/core/eventbus"
	"lungscan-go/core/state"
	"lungscan-go/domain/diagnosis"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("inference runner is closed")

// Preprocessor turns an image file into a model input tensor.
type Preprocessor interface {
	Validate(path string) error
	LoadAndNormalize(path string, spec diagnosis.InputSpec) (*diagnosis.Tensor, error)
}

// Classifier runs the model.
type Classifier interface {
	Load() error
	InputSpec() diagnosis.InputSpec
	Classify(t *diagnosis.Tensor) (diagnosis.Result, error)
}

// Config holds configuration for a Runner.
type Config struct {
	Preprocessor Preprocessor
	Classifier   Classifier
	// EventBus receives job events. Optional.
	EventBus eventbus.EventBus
	Logger   *slog.Logger
	// StopTimeout bounds how long Close waits for running jobs.
	StopTimeout time.Duration
}

// Runner executes inference jobs. Submitting a new job cancels the active
// one; the new job starts only after the previous one has finished, so at
// most one job is ever Running. Runner is safe for concurrent use.
type Runner struct {
	pre         Preprocessor
	classifier  Classifier
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	stopTimeout time.Duration

	mu       sync.Mutex
	jobs     map[string]*job // jobs without a delivered outcome
	active   *job
	lastDone <-chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewRunner creates a runner.
func NewRunner(cfg *Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}

	return &Runner{
		pre:         cfg.Preprocessor,
		classifier:  cfg.Classifier,
		eventBus:    cfg.EventBus,
		logger:      cfg.Logger,
		stopTimeout: cfg.StopTimeout,
		jobs:        make(map[string]*job),
	}
}

// Submit starts a job for the image at imagePath and returns its handle.
// Any active job is cancelled and will report Cancelled.
func (r *Runner) Submit(imagePath string) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}

	if prev := r.active; prev != nil {
		prev.cancel()
		prev.logger().Info("Job replaced by new submission")
	}

	j := newJob(uuid.NewString(), imagePath, r.logger, r.lastDone)
	r.jobs[j.id] = j
	r.active = j
	r.lastDone = j.finished
	r.wg.Add(1)
	r.mu.Unlock()

	j.logger().Info("Job submitted", "image", imagePath)
	r.publish(event.NewJobSubmitted(j.id, imagePath))

	go r.run(j)
	return j.handle, nil
}

// Cancel requests cancellation of the job with the given ID. It returns false
// if the job is unknown or already finished. Once Cancel returns true the job
// is guaranteed to report Cancelled.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	if !j.cancelled() {
		j.cancel()
		j.logger().Info("Job cancellation requested")
	}
	return true
}

// CancelActive cancels the most recently submitted job if it has not finished.
func (r *Runner) CancelActive() bool {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()

	if active == nil {
		return false
	}
	return r.Cancel(active.id)
}

// Active returns the ID of the most recently submitted job while it has not
// finished.
func (r *Runner) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return "", false
	}
	return r.active.id, true
}

// Close cancels all jobs and waits for their workers, up to the stop timeout.
// Submit fails with ErrClosed afterwards.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, j := range r.jobs {
		j.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Inference runner stopped")
	case <-time.After(r.stopTimeout):
		r.logger.Warn("Inference runner stop timeout, a job is still running")
	}
}

// run is the worker goroutine of a job. It is the only publisher of the
// job's progress, state and outcome events.
func (r *Runner) run(j *job) {
	defer r.wg.Done()
	defer close(j.finished)

	j.waitForPrevious()
	outcome := r.execute(j)
	r.deliver(j, outcome)
	j.waitForChain()
}

// execute runs the job stages, checking for cancellation between them.
// Panics are recovered and reported as an InferenceError.
func (r *Runner) execute(j *job) (outcome diagnosis.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			j.logger().Error("Job panicked", "panic", rec, "stack", string(debug.Stack()))
			outcome = diagnosis.Failed(diagnosis.NewInferenceError("run", fmt.Errorf("panic: %v", rec)))
		}
	}()

	if err := j.checkpoint("before_start"); err != nil {
		return diagnosis.Failed(err)
	}
	r.setState(j, state.StateRunning)

	r.progress(j, event.StageValidating)
	if err := r.pre.Validate(j.imagePath); err != nil {
		return diagnosis.Failed(diagnosis.AsError("validate", err))
	}

	if err := j.checkpoint("before_load_model"); err != nil {
		return diagnosis.Failed(err)
	}
	r.progress(j, event.StageLoadingModel)
	if err := r.classifier.Load(); err != nil {
		return diagnosis.Failed(diagnosis.AsError("load_model", err))
	}

	if err := j.checkpoint("before_preprocess"); err != nil {
		return diagnosis.Failed(err)
	}
	r.progress(j, event.StagePreprocessing)
	tensor, err := r.pre.LoadAndNormalize(j.imagePath, r.classifier.InputSpec())
	if err != nil {
		return diagnosis.Failed(diagnosis.AsError("preprocess", err))
	}

	if err := j.checkpoint("before_classify"); err != nil {
		return diagnosis.Failed(err)
	}
	r.progress(j, event.StageClassifying)
	result, err := r.classifier.Classify(tensor)
	if err != nil {
		return diagnosis.Failed(diagnosis.AsError("classify", err))
	}

	if err := j.checkpoint("before_deliver"); err != nil {
		j.logger().Debug("Discarding result of cancelled job", "result", result.String())
		return diagnosis.Failed(err)
	}
	return diagnosis.Succeeded(result)
}

// deliver moves the job to its terminal state and reports the outcome once.
func (r *Runner) deliver(j *job, outcome diagnosis.Outcome) {
	r.mu.Lock()
	delete(r.jobs, j.id)
	if r.active == j {
		r.active = nil
	}
	// Cancel and this check share r.mu, so a Cancel that returned true
	// always wins.
	if j.cancelled() && outcome.Kind != diagnosis.OutcomeCancelled {
		j.logger().Debug("Job cancelled after its last checkpoint", "discarded", outcome.Kind.String())
		outcome = diagnosis.Cancelled()
	}
	r.mu.Unlock()

	// Completed is reported only for a result that will be delivered.
	if outcome.Kind == diagnosis.OutcomeSucceeded {
		r.progress(j, event.StageCompleted)
	}

	target := targetState(outcome)
	if j.state() == state.StatePending && target != state.StateCancelled {
		r.setState(j, state.StateRunning)
	}
	if !r.setState(j, target) {
		return
	}

	switch outcome.Kind {
	case diagnosis.OutcomeSucceeded:
		j.logger().Info("Job succeeded",
			"label", outcome.Result.Label,
			"confidence", outcome.Result.FormatConfidence())
	case diagnosis.OutcomeFailed:
		j.logger().Warn("Job failed", "error", outcome.Err)
	case diagnosis.OutcomeCancelled:
		j.logger().Info("Job cancelled")
	}

	r.publish(event.NewJobFinished(j.id, j.imagePath, outcome))
	j.handle.resolve(outcome)
	j.cancel()
}

// setState transitions the job and publishes the change.
func (r *Runner) setState(j *job, target state.JobState) bool {
	from, err := j.transition(target)
	if err != nil {
		j.logger().Error("Rejected job state transition", "error", err)
		return false
	}
	j.logger().Debug("Job state changed", "from", from.String(), "to", target.String())
	r.publish(event.NewJobStateChanged(j.id, from, target))
	return true
}

func (r *Runner) progress(j *job, stage event.Stage) {
	j.logger().Debug("Job stage", "stage", stage.String())
	r.publish(event.NewJobProgress(j.id, stage))
}

func (r *Runner) publish(e event.Event) {
	if r.eventBus != nil {
		r.eventBus.Publish(e)
	}
}
