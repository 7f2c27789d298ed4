// Package presentation provides the UI layer with event bridging to the application layer.
package presentation

import (
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"

	"lungscan-go/application"
	"lungscan-go/core/command"
	"lungscan-go/core/event"
	"lungscan-go/core/eventbus"
	"lungscan-go/domain/diagnosis"
)

// Dispatcher runs fn on the UI thread.
type Dispatcher func(fn func())

// FyneDispatcher schedules fn on the Fyne main goroutine.
func FyneDispatcher(fn func()) {
	fyne.Do(fn)
}

// SyncDispatcher runs fn on the calling goroutine.
func SyncDispatcher(fn func()) {
	fn()
}

// UIEventBridge bridges UI events to the application layer and routes events back to UI.
// Every callback runs through the configured Dispatcher, so UI code never
// runs on the worker or event bus goroutines.
type UIEventBridge struct {
	coordinator *application.Coordinator
	eventBus    eventbus.EventBus
	dispatch    Dispatcher
	logger      *slog.Logger

	// UI callbacks - set by UI components
	callbacks   *UICallbacks
	callbacksMu sync.RWMutex

	// Subscription management
	subscriptionID string
	closeOnce      sync.Once
}

// UICallbacks contains callbacks for UI updates.
type UICallbacks struct {
	// Job lifecycle
	OnJobSubmitted func(jobID, imagePath string)
	OnJobProgress  func(jobID string, stage event.Stage)
	OnJobSucceeded func(jobID string, result diagnosis.Result)
	OnJobFailed    func(jobID string, err *diagnosis.Error)
	OnJobCancelled func(jobID string)

	// Model events
	OnModelLoaded     func(name, path string)
	OnModelLoadFailed func(err error)
}

// BridgeConfig holds configuration for UIEventBridge.
type BridgeConfig struct {
	Coordinator *application.Coordinator
	EventBus    eventbus.EventBus
	// Dispatcher defaults to FyneDispatcher.
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

// NewUIEventBridge creates a new UI event bridge.
func NewUIEventBridge(cfg *BridgeConfig) *UIEventBridge {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = FyneDispatcher
	}

	b := &UIEventBridge{
		coordinator: cfg.Coordinator,
		eventBus:    cfg.EventBus,
		dispatch:    cfg.Dispatcher,
		logger:      cfg.Logger,
		callbacks:   &UICallbacks{},
	}

	// Subscribe to events
	if b.eventBus != nil {
		b.subscriptionID = b.eventBus.Subscribe(b.handleEvent)
	}

	return b
}

// SetCallbacks sets the UI callbacks.
func (b *UIEventBridge) SetCallbacks(callbacks *UICallbacks) {
	b.callbacksMu.Lock()
	defer b.callbacksMu.Unlock()
	b.callbacks = callbacks
}

// Close unsubscribes from the event bus.
func (b *UIEventBridge) Close() {
	b.closeOnce.Do(func() {
		if b.eventBus != nil && b.subscriptionID != "" {
			b.eventBus.Unsubscribe(b.subscriptionID)
		}
	})
}

// Command dispatching methods

// AnalyzeImage submits an image for classification, replacing any running analysis.
func (b *UIEventBridge) AnalyzeImage(imagePath string) error {
	return b.coordinator.Dispatch(&command.SubmitJob{ImagePath: imagePath})
}

// CancelJob cancels a specific job.
func (b *UIEventBridge) CancelJob(jobID string) error {
	return b.coordinator.Dispatch(command.NewCancelJob(jobID))
}

// CancelActiveJob cancels the running analysis, if any.
func (b *UIEventBridge) CancelActiveJob() error {
	return b.coordinator.Dispatch(&command.CancelActiveJob{})
}

// ReloadModel reloads the model from path, or the current manifest if empty.
func (b *UIEventBridge) ReloadModel(path string) error {
	return b.coordinator.Dispatch(&command.ReloadModel{Path: path})
}

// Query methods

// IsAnalyzing reports whether a job has not finished yet.
func (b *UIEventBridge) IsAnalyzing() bool {
	_, ok := b.coordinator.ActiveJob()
	return ok
}

// Event handling

func (b *UIEventBridge) handleEvent(e event.Event) {
	b.callbacksMu.RLock()
	callbacks := b.callbacks
	b.callbacksMu.RUnlock()

	if callbacks == nil {
		return
	}

	switch evt := e.(type) {
	case *event.JobSubmitted:
		if callbacks.OnJobSubmitted != nil {
			b.dispatch(func() { callbacks.OnJobSubmitted(evt.JobID(), evt.ImagePath) })
		}

	case *event.JobProgress:
		if callbacks.OnJobProgress != nil {
			b.dispatch(func() { callbacks.OnJobProgress(evt.JobID(), evt.Stage) })
		}

	case *event.JobFinished:
		b.handleJobFinished(callbacks, evt)

	case *event.ModelLoaded:
		if callbacks.OnModelLoaded != nil {
			b.dispatch(func() { callbacks.OnModelLoaded(evt.Name, evt.Path) })
		}

	case *event.ModelLoadFailed:
		if callbacks.OnModelLoadFailed != nil {
			b.dispatch(func() { callbacks.OnModelLoadFailed(evt.Error) })
		}
	}
}

func (b *UIEventBridge) handleJobFinished(callbacks *UICallbacks, evt *event.JobFinished) {
	o := evt.Outcome
	switch o.Kind {
	case diagnosis.OutcomeSucceeded:
		if callbacks.OnJobSucceeded != nil {
			b.dispatch(func() { callbacks.OnJobSucceeded(evt.JobID(), o.Result) })
		}
	case diagnosis.OutcomeFailed:
		if callbacks.OnJobFailed != nil {
			b.dispatch(func() { callbacks.OnJobFailed(evt.JobID(), o.Err) })
		}
	case diagnosis.OutcomeCancelled:
		if callbacks.OnJobCancelled != nil {
			b.dispatch(func() { callbacks.OnJobCancelled(evt.JobID()) })
		}
	default:
		b.logger.Warn("Job finished with unknown outcome", "job_id", evt.JobID(), "kind", o.Kind.String())
	}
}
