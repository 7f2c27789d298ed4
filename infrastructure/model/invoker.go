package model

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lungscan-go/domain/diagnosis"
)

// Config holds configuration for an Invoker.
type Config struct {
	// ManifestPath is the model manifest to load.
	ManifestPath string
	Logger       *slog.Logger
}

// Invoker owns one loaded model and runs classifications on it.
// The model is loaded once on first use and reused until Reload or Close.
// All calls are serialized; the backend is never invoked concurrently.
type Invoker struct {
	mu           sync.Mutex
	manifestPath string
	manifest     *Manifest
	net          Network
	loads        int
	logger       *slog.Logger
}

// NewInvoker creates an invoker for the manifest at cfg.ManifestPath.
// Nothing is read from disk until Load or Classify.
func NewInvoker(cfg *Config) *Invoker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Invoker{
		manifestPath: cfg.ManifestPath,
		logger:       cfg.Logger,
	}
}

// Load loads the model if it is not loaded yet.
func (i *Invoker) Load() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loadLocked()
}

func (i *Invoker) loadLocked() error {
	if i.net != nil {
		return nil
	}
	m, net, err := i.open(i.manifestPath)
	if err != nil {
		return err
	}
	i.manifest = m
	i.net = net
	return nil
}

// open reads a manifest and constructs its network. It does not touch invoker state.
func (i *Invoker) open(path string) (*Manifest, Network, error) {
	if path == "" {
		return nil, nil, diagnosis.NewModelLoadError("open", path, fmt.Errorf("no model configured"))
	}

	start := time.Now()
	m, err := LoadManifest(path)
	if err != nil {
		return nil, nil, err
	}

	net, err := openNetwork(m)
	if err != nil {
		return nil, nil, diagnosis.NewModelLoadError("open_network", m.FilePath(), err)
	}

	i.loads++
	i.logger.Info("Model loaded",
		"name", m.Name,
		"format", m.Format,
		"input", m.Input.String(),
		"classes", len(m.Labels),
		"elapsed", time.Since(start))
	return m, net, nil
}

// Reload replaces the loaded model with the one at path (the current
// manifest path if empty). On failure the previous model stays loaded.
func (i *Invoker) Reload(path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if path == "" {
		path = i.manifestPath
	}

	m, net, err := i.open(path)
	if err != nil {
		i.logger.Warn("Model reload failed, keeping previous model", "path", path, "error", err)
		return err
	}

	if i.net != nil {
		if err := i.net.Close(); err != nil {
			i.logger.Warn("Failed to close previous model", "error", err)
		}
	}
	i.manifestPath = path
	i.manifest = m
	i.net = net
	return nil
}

// Loaded reports whether a model is currently loaded.
func (i *Invoker) Loaded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.net != nil
}

// LoadCount returns how many times a model has been read from disk.
func (i *Invoker) LoadCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loads
}

// ManifestPath returns the manifest currently configured.
func (i *Invoker) ManifestPath() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.manifestPath
}

// Manifest returns the loaded manifest, or nil before Load.
func (i *Invoker) Manifest() *Manifest {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.manifest
}

// InputSpec returns the preprocessing parameters of the loaded model.
// Before the model is loaded it returns the bundled classifier's defaults.
func (i *Invoker) InputSpec() diagnosis.InputSpec {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.manifest == nil {
		return diagnosis.DefaultInputSpec()
	}
	return i.manifest.InputSpec()
}

// Classify runs the model on t and maps the arg-max class to a result.
// It loads the model on first use.
func (i *Invoker) Classify(t *diagnosis.Tensor) (diagnosis.Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.loadLocked(); err != nil {
		return diagnosis.Result{}, err
	}

	if err := t.Check(); err != nil {
		return diagnosis.Result{}, diagnosis.NewInferenceError("check_input", err)
	}
	if t.Shape != i.manifest.Input {
		return diagnosis.Result{}, diagnosis.NewInferenceError("check_input",
			fmt.Errorf("shape mismatch: got %s, model expects %s", t.Shape, i.manifest.Input))
	}

	scores, err := i.predict(t)
	if err != nil {
		return diagnosis.Result{}, diagnosis.NewInferenceError("predict", err)
	}
	if len(scores) == 0 {
		return diagnosis.Result{}, diagnosis.NewInferenceError("predict", fmt.Errorf("model returned no scores"))
	}
	if hasNonFinite(scores) {
		return diagnosis.Result{}, diagnosis.NewInferenceError("predict", fmt.Errorf("model returned non-finite scores"))
	}

	probs := toProbabilities(scores)
	best := argmax(probs)
	return diagnosis.NewResult(best, probs[best], i.manifest.Labels), nil
}

// predict calls the backend, converting a panic into an error.
func (i *Invoker) predict(t *diagnosis.Tensor) (scores []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return i.net.Predict(t)
}

// Close releases the loaded model. A later Classify loads it again.
func (i *Invoker) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.net == nil {
		return nil
	}
	err := i.net.Close()
	i.net = nil
	i.manifest = nil
	return err
}
