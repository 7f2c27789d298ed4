package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lungscan-go/domain/diagnosis"
	"lungscan-go/infrastructure/imaging"
	"lungscan-go/infrastructure/model/modeltest"
)

func newTestInvoker(t *testing.T) (*Invoker, string) {
	t.Helper()
	dir := t.TempDir()
	path := modeltest.WriteDenseManifest(t, dir)
	return NewInvoker(&Config{ManifestPath: path}), dir
}

func TestInvoker_KnownSamples(t *testing.T) {
	inv, dir := newTestInvoker(t)
	defer inv.Close()
	require.NoError(t, inv.Load())

	pre := imaging.NewPreprocessor(nil)
	spec := inv.InputSpec()

	classes := []diagnosis.Class{
		diagnosis.ClassAdenocarcinoma,
		diagnosis.ClassNormal,
		diagnosis.ClassSquamousCellCarcinoma,
	}
	for _, class := range classes {
		t.Run(class.String(), func(t *testing.T) {
			path := modeltest.WriteSample(t, dir, class)
			tensor, err := pre.LoadAndNormalize(path, spec)
			require.NoError(t, err)

			result, err := inv.Classify(tensor)
			require.NoError(t, err)
			assert.Equal(t, class, result.Class)
			assert.Equal(t, class.String(), result.Label)
			assert.Greater(t, result.Confidence, 50.0)
			assert.LessOrEqual(t, result.Confidence, 100.0)
		})
	}
}

func TestInvoker_LoadsOnce(t *testing.T) {
	inv, _ := newTestInvoker(t)
	defer inv.Close()

	spec := diagnosis.InputSpec{Shape: diagnosis.Shape{Height: 32, Width: 32, Channels: 3}, Range: diagnosis.PixelRange{Max: 1}}
	tensor := diagnosis.NewTensor(spec.Shape)

	for i := 0; i < 5; i++ {
		_, err := inv.Classify(tensor)
		require.NoError(t, err)
	}
	require.NoError(t, inv.Load())
	assert.Equal(t, 1, inv.LoadCount())
}

func TestInvoker_ConcurrentClassify(t *testing.T) {
	inv, _ := newTestInvoker(t)
	defer inv.Close()

	tensor := diagnosis.NewTensor(diagnosis.Shape{Height: 32, Width: 32, Channels: 3})
	for i := range tensor.Data {
		tensor.Data[i] = float32(i%3) / 2
	}

	var wg sync.WaitGroup
	results := make([]diagnosis.Result, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = inv.Classify(tensor)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 1, inv.LoadCount())
}

func TestInvoker_MissingModel(t *testing.T) {
	inv := NewInvoker(&Config{ManifestPath: filepath.Join(t.TempDir(), "missing.yaml")})

	err := inv.Load()
	assert.ErrorIs(t, err, diagnosis.ErrModelLoad)
	assert.False(t, inv.Loaded())

	_, err = inv.Classify(diagnosis.NewTensor(diagnosis.DefaultShape))
	assert.ErrorIs(t, err, diagnosis.ErrModelLoad)

	empty := NewInvoker(&Config{})
	assert.ErrorIs(t, empty.Load(), diagnosis.ErrModelLoad)
}

func TestInvoker_CorruptModel(t *testing.T) {
	dir := t.TempDir()
	path := modeltest.WriteFile(t, dir, "model.yaml", "format: dense\ndense: [not, a, map\n")

	inv := NewInvoker(&Config{ManifestPath: path})
	err := inv.Load()
	assert.ErrorIs(t, err, diagnosis.ErrModelLoad)
}

func TestInvoker_ShapeMismatch(t *testing.T) {
	inv, _ := newTestInvoker(t)
	defer inv.Close()

	_, err := inv.Classify(diagnosis.NewTensor(diagnosis.DefaultShape))
	require.Error(t, err)
	assert.ErrorIs(t, err, diagnosis.ErrInference)

	bad := diagnosis.NewTensor(diagnosis.Shape{Height: 32, Width: 32, Channels: 3})
	bad.Data = bad.Data[:10]
	_, err = inv.Classify(bad)
	assert.ErrorIs(t, err, diagnosis.ErrInference)
}

type stubNetwork struct {
	scores []float32
	err    error
	panics bool
	closed bool
}

func (s *stubNetwork) Predict(*diagnosis.Tensor) ([]float32, error) {
	if s.panics {
		panic("native crash")
	}
	return s.scores, s.err
}

func (s *stubNetwork) Close() error {
	s.closed = true
	return nil
}

func invokerWithNetwork(t *testing.T, net Network) *Invoker {
	t.Helper()
	m, err := ParseManifest([]byte(modeltest.DenseManifest), filepath.Join(t.TempDir(), "model.yaml"))
	require.NoError(t, err)
	inv := NewInvoker(&Config{ManifestPath: m.Path()})
	inv.manifest = m
	inv.net = net
	return inv
}

func TestInvoker_BackendFailures(t *testing.T) {
	tensor := diagnosis.NewTensor(diagnosis.Shape{Height: 32, Width: 32, Channels: 3})

	tests := []struct {
		name string
		net  *stubNetwork
	}{
		{"error", &stubNetwork{err: errors.New("runtime failure")}},
		{"panic", &stubNetwork{panics: true}},
		{"empty", &stubNetwork{scores: []float32{}}},
		{"nan", &stubNetwork{scores: []float32{0.5, float32(math.NaN()), 0.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := invokerWithNetwork(t, tt.net)
			_, err := inv.Classify(tensor)
			require.Error(t, err)
			assert.ErrorIs(t, err, diagnosis.ErrInference)
		})
	}
}

func TestInvoker_ScoreMapping(t *testing.T) {
	tensor := diagnosis.NewTensor(diagnosis.Shape{Height: 32, Width: 32, Channels: 3})

	tests := []struct {
		name       string
		scores     []float32
		class      diagnosis.Class
		confidence float64
		label      string
	}{
		{"probabilities", []float32{0.1, 0.7, 0.2}, diagnosis.ClassNormal, 70, "Lung Normal"},
		{"logits", []float32{0, 0, 5}, diagnosis.ClassSquamousCellCarcinoma, 100 * math.Exp(5) / (2 + math.Exp(5)), "Lung Squamous Cell Carcinoma"},
		{"extra class", []float32{0.1, 0.1, 0.1, 0.7}, diagnosis.Class(3), 70, "Unknown Class (3)"},
		{"tie", []float32{0.5, 0.5, 0}, diagnosis.ClassAdenocarcinoma, 50, "Lung Adenocarcinoma"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := invokerWithNetwork(t, &stubNetwork{scores: tt.scores})
			result, err := inv.Classify(tensor)
			require.NoError(t, err)
			assert.Equal(t, tt.class, result.Class)
			assert.Equal(t, tt.label, result.Label)
			assert.InDelta(t, tt.confidence, result.Confidence, 1e-3)
			assert.GreaterOrEqual(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 100.0)
		})
	}
}

func TestInvoker_Reload(t *testing.T) {
	inv, dir := newTestInvoker(t)
	defer inv.Close()
	require.NoError(t, inv.Load())
	first := inv.Manifest()

	// Failed reload keeps the previous model
	err := inv.Reload(filepath.Join(dir, "nope.yaml"))
	assert.ErrorIs(t, err, diagnosis.ErrModelLoad)
	assert.Same(t, first, inv.Manifest())
	assert.True(t, inv.Loaded())

	swapped := modeltest.WriteFile(t, dir, "other.yaml", `name: other
format: dense
input: {height: 8, width: 8, channels: 3}
dense:
  weights: [[1, 0, 0], [0, 1, 0], [0, 0, 1]]
`)
	require.NoError(t, inv.Reload(swapped))
	assert.Equal(t, "other", inv.Manifest().Name)
	assert.Equal(t, swapped, inv.ManifestPath())
	assert.Equal(t, diagnosis.Shape{Height: 8, Width: 8, Channels: 3}, inv.InputSpec().Shape)
	assert.Equal(t, diagnosis.DefaultPixelRange, inv.InputSpec().Range)
	assert.Equal(t, 2, inv.LoadCount())

	// Empty path reloads the current manifest
	require.NoError(t, inv.Reload(""))
	assert.Equal(t, 3, inv.LoadCount())
}

func TestInvoker_Close(t *testing.T) {
	stub := &stubNetwork{scores: []float32{1, 0, 0}}
	inv := invokerWithNetwork(t, stub)

	require.NoError(t, inv.Close())
	assert.True(t, stub.closed)
	assert.False(t, inv.Loaded())
	assert.Equal(t, diagnosis.DefaultInputSpec(), inv.InputSpec())

	// Close twice is a no-op
	require.NoError(t, inv.Close())
}

func TestFindManifest(t *testing.T) {
	dir := t.TempDir()
	models := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(models, 0o755))
	path := modeltest.WriteDenseManifest(t, models)

	found, err := FindManifest("", []string{filepath.Join(dir, "empty"), models})
	require.NoError(t, err)
	assert.Equal(t, path, found)

	found, err = FindManifest(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	_, err = FindManifest(filepath.Join(dir, "missing.yaml"), nil)
	assert.ErrorIs(t, err, diagnosis.ErrModelLoad)

	_, err = FindManifest("", []string{filepath.Join(dir, "a"), filepath.Join(dir, "b")})
	require.ErrorIs(t, err, diagnosis.ErrModelLoad)
	assert.Contains(t, err.Error(), filepath.Join(dir, "a", DefaultManifestName))
}

func TestDefaultSearchDirs(t *testing.T) {
	assert.NotEmpty(t, DefaultSearchDirs())
}
