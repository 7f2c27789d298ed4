// Package application provides the application layer for orchestrating inference jobs.
package application

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lungscan-go/application/inference"
	"lungscan-go/core/command"
	"lungscan-go/core/event"
	"lungscan-go/core/eventbus"
	"lungscan-go/infrastructure/model"
)

// ModelLoader is the model seen by the coordinator: a classifier that can be
// reloaded and released.
type ModelLoader interface {
	inference.Classifier
	Reload(path string) error
	Manifest() *model.Manifest
	Close() error
}

// Coordinator routes commands from the presentation layer to the inference
// runner and the model.
type Coordinator struct {
	runner   *inference.Runner
	model    ModelLoader
	eventBus eventbus.EventBus
	logger   *slog.Logger

	preload bool
	wg      sync.WaitGroup

	// announced is the manifest of the last ModelLoaded event.
	announcedMu sync.Mutex
	announced   *model.Manifest

	stopOnce sync.Once
}

// CoordinatorConfig holds configuration for the Coordinator.
type CoordinatorConfig struct {
	Preprocessor inference.Preprocessor
	Model        ModelLoader
	EventBus     eventbus.EventBus
	Logger       *slog.Logger
	// PreloadModel loads the model in the background on Start so the first
	// job does not pay for it.
	PreloadModel bool
	// StopTimeout bounds how long Stop waits for a running job.
	StopTimeout time.Duration
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(cfg *CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Coordinator{
		model:    cfg.Model,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
		preload:  cfg.PreloadModel,
	}
	c.runner = inference.NewRunner(&inference.Config{
		Preprocessor: cfg.Preprocessor,
		Classifier:   &jobModel{ModelLoader: cfg.Model, c: c},
		EventBus:     cfg.EventBus,
		Logger:       cfg.Logger,
		StopTimeout:  cfg.StopTimeout,
	})
	return c
}

// jobModel is the classifier seen by jobs. Loads they trigger are reported
// like a preload.
type jobModel struct {
	ModelLoader
	c *Coordinator
}

func (m *jobModel) Load() error {
	if err := m.ModelLoader.Load(); err != nil {
		m.c.publish(&event.ModelLoadFailed{Error: err})
		return err
	}
	m.c.publishLoaded()
	return nil
}

// Start begins the coordinator. Subscribe to model events before calling
// it; the preload result is published once.
func (c *Coordinator) Start() {
	if c.preload {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.preloadModel()
		}()
	}
	c.logger.Info("Coordinator started")
}

// Stop cancels any running job, waits for it and releases the model.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.runner.Close()
		c.wg.Wait()

		if err := c.model.Close(); err != nil {
			c.logger.Warn("Failed to release model", "error", err)
		}
		c.logger.Info("Coordinator stopped")
	})
}

// Dispatch sends a command to the appropriate handler.
func (c *Coordinator) Dispatch(cmd command.Command) error {
	c.logger.Debug("Dispatching command", "command", cmd.CommandName())

	switch cmd := cmd.(type) {
	case *command.SubmitJob:
		_, err := c.Submit(cmd.ImagePath)
		return err
	case *command.CancelJob:
		return c.handleCancelJob(cmd)
	case *command.CancelActiveJob:
		c.runner.CancelActive()
		return nil
	case *command.ReloadModel:
		return c.handleReloadModel(cmd)
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
}

// Submit starts a job for imagePath, replacing any active job.
func (c *Coordinator) Submit(imagePath string) (*inference.Handle, error) {
	if imagePath == "" {
		return nil, errors.New("no image selected")
	}
	return c.runner.Submit(imagePath)
}

// ActiveJob returns the ID of the job that has not finished yet, if any.
func (c *Coordinator) ActiveJob() (string, bool) {
	return c.runner.Active()
}

// Command handlers

func (c *Coordinator) handleCancelJob(cmd *command.CancelJob) error {
	if !c.runner.Cancel(cmd.JobID()) {
		return fmt.Errorf("job not found or already finished: %s", cmd.JobID())
	}
	return nil
}

func (c *Coordinator) handleReloadModel(cmd *command.ReloadModel) error {
	if err := c.model.Reload(cmd.Path); err != nil {
		c.publish(&event.ModelLoadFailed{Path: cmd.Path, Error: err})
		return err
	}
	c.publishLoaded()
	return nil
}

func (c *Coordinator) preloadModel() {
	if err := c.model.Load(); err != nil {
		c.logger.Warn("Model preload failed", "error", err)
		c.publish(&event.ModelLoadFailed{Error: err})
		return
	}
	c.publishLoaded()
}

// publishLoaded reports the loaded model once per manifest.
func (c *Coordinator) publishLoaded() {
	m := c.model.Manifest()
	if m == nil {
		return
	}

	c.announcedMu.Lock()
	if c.announced == m {
		c.announcedMu.Unlock()
		return
	}
	c.announced = m
	c.announcedMu.Unlock()

	c.publish(&event.ModelLoaded{Name: m.Name, Path: m.Path()})
}

func (c *Coordinator) publish(e event.Event) {
	if c.eventBus != nil {
		c.eventBus.Publish(e)
	}
}
