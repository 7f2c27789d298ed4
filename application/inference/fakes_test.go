package inference

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lungscan-go/core/event"
	"lungscan-go/core/eventbus"
	"lungscan-go/core/state"
	"lungscan-go/domain/diagnosis"
)

var testSpec = diagnosis.InputSpec{
	Shape: diagnosis.Shape{Height: 4, Width: 4, Channels: 3},
	Range: diagnosis.DefaultPixelRange,
}

type fakePreprocessor struct {
	validateErr error
	loadErr     error
}

func (p *fakePreprocessor) Validate(path string) error {
	return p.validateErr
}

func (p *fakePreprocessor) LoadAndNormalize(path string, spec diagnosis.InputSpec) (*diagnosis.Tensor, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return diagnosis.NewTensor(spec.Shape), nil
}

// fakeClassifier returns a fixed result. When gate is set, Classify signals
// entered and blocks until gate yields a value or is closed.
type fakeClassifier struct {
	loadErr     error
	classifyErr error
	panicMsg    string
	result      diagnosis.Result

	gate    chan struct{}
	entered chan struct{}

	running    atomic.Int32
	maxRunning atomic.Int32
	calls      atomic.Int32
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{
		result: diagnosis.Result{Class: diagnosis.ClassNormal, Label: "Lung Normal", Confidence: 88},
	}
}

func (c *fakeClassifier) gated() *fakeClassifier {
	c.gate = make(chan struct{})
	c.entered = make(chan struct{}, 16)
	return c
}

func (c *fakeClassifier) Load() error {
	return c.loadErr
}

func (c *fakeClassifier) InputSpec() diagnosis.InputSpec {
	return testSpec
}

func (c *fakeClassifier) Classify(t *diagnosis.Tensor) (diagnosis.Result, error) {
	c.calls.Add(1)
	n := c.running.Add(1)
	defer c.running.Add(-1)
	for {
		m := c.maxRunning.Load()
		if n <= m || c.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}

	if c.gate != nil {
		c.entered <- struct{}{}
		<-c.gate
	}
	if c.panicMsg != "" {
		panic(c.panicMsg)
	}
	if c.classifyErr != nil {
		return diagnosis.Result{}, c.classifyErr
	}
	return c.result, nil
}

// recorder collects every event published on a bus in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func newRecorder(bus eventbus.EventBus) *recorder {
	r := &recorder{}
	bus.Subscribe(func(e event.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func (r *recorder) forJob(jobID string) []event.Event {
	var out []event.Event
	for _, e := range r.all() {
		if je, ok := e.(event.JobEvent); ok && je.JobID() == jobID {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) stages(jobID string) []event.Stage {
	var out []event.Stage
	for _, e := range r.forJob(jobID) {
		if p, ok := e.(*event.JobProgress); ok {
			out = append(out, p.Stage)
		}
	}
	return out
}

func (r *recorder) states(jobID string) []state.JobState {
	var out []state.JobState
	for _, e := range r.forJob(jobID) {
		if sc, ok := e.(*event.JobStateChanged); ok {
			out = append(out, sc.NewState)
		}
	}
	return out
}

func (r *recorder) finished(jobID string) []*event.JobFinished {
	var out []*event.JobFinished
	for _, e := range r.forJob(jobID) {
		if f, ok := e.(*event.JobFinished); ok {
			out = append(out, f)
		}
	}
	return out
}

type fixture struct {
	runner     *Runner
	bus        eventbus.EventBus
	rec        *recorder
	pre        *fakePreprocessor
	classifier *fakeClassifier
}

func newFixture(t *testing.T, pre *fakePreprocessor, classifier *fakeClassifier) *fixture {
	t.Helper()
	if pre == nil {
		pre = &fakePreprocessor{}
	}
	if classifier == nil {
		classifier = newFakeClassifier()
	}

	bus := eventbus.New(16)
	f := &fixture{
		bus:        bus,
		rec:        newRecorder(bus),
		pre:        pre,
		classifier: classifier,
	}
	f.runner = NewRunner(&Config{
		Preprocessor: pre,
		Classifier:   classifier,
		EventBus:     bus,
		StopTimeout:  time.Second,
	})
	t.Cleanup(func() {
		if classifier.gate != nil {
			select {
			case <-classifier.gate:
			default:
				close(classifier.gate)
			}
		}
		f.runner.Close()
		bus.Close()
	})
	return f
}

// drain waits for every queued event to be delivered.
func (f *fixture) drain() {
	f.runner.Close()
	f.bus.Close()
}

var errBoom = errors.New("boom")
