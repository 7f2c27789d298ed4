package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lungscan-go/domain/diagnosis"
	"lungscan-go/infrastructure/imaging"
	"lungscan-go/infrastructure/model"
	"lungscan-go/infrastructure/model/modeltest"
)

func newPipeline(t *testing.T, manifestPath string) (*Runner, *model.Invoker) {
	t.Helper()
	invoker := model.NewInvoker(&model.Config{ManifestPath: manifestPath})
	runner := NewRunner(&Config{
		Preprocessor: imaging.NewPreprocessor(nil),
		Classifier:   invoker,
	})
	t.Cleanup(func() {
		runner.Close()
		invoker.Close()
	})
	return runner, invoker
}

func TestPipeline_ClassifiesSamples(t *testing.T) {
	dir := t.TempDir()
	runner, invoker := newPipeline(t, modeltest.WriteDenseManifest(t, dir))

	for _, class := range []diagnosis.Class{
		diagnosis.ClassAdenocarcinoma,
		diagnosis.ClassNormal,
		diagnosis.ClassSquamousCellCarcinoma,
	} {
		t.Run(class.String(), func(t *testing.T) {
			h, err := runner.Submit(modeltest.WriteSample(t, dir, class))
			require.NoError(t, err)

			o := wait(t, h)
			require.Equal(t, diagnosis.OutcomeSucceeded, o.Kind, "outcome: %s", o.Message())
			assert.Equal(t, class, o.Result.Class)
			assert.Equal(t, class.String(), o.Result.Label)
			assert.Greater(t, o.Result.Confidence, 50.0)
			assert.LessOrEqual(t, o.Result.Confidence, 100.0)
		})
	}
	assert.Equal(t, 1, invoker.LoadCount(), "model is loaded once and reused")
}

func TestPipeline_ErrorKinds(t *testing.T) {
	dir := t.TempDir()
	manifest := modeltest.WriteDenseManifest(t, dir)

	corrupt := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image"), 0o644))

	tests := []struct {
		name     string
		manifest string
		image    string
		kind     diagnosis.Kind
	}{
		{"missing image", manifest, filepath.Join(dir, "missing.png"), diagnosis.KindDecode},
		{"unsupported format", manifest, modeltest.WriteFile(t, dir, "notes.txt", "hi"), diagnosis.KindDecode},
		{"corrupt image", manifest, corrupt, diagnosis.KindDecode},
		{"missing model", filepath.Join(dir, "nope.yaml"), modeltest.WriteSample(t, dir, diagnosis.ClassNormal), diagnosis.KindModelLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, _ := newPipeline(t, tt.manifest)

			// Repeated submissions of the same input fail the same way
			for i := 0; i < 2; i++ {
				h, err := runner.Submit(tt.image)
				require.NoError(t, err)

				o := wait(t, h)
				require.Equal(t, diagnosis.OutcomeFailed, o.Kind)
				assert.Equal(t, tt.kind, o.Err.Kind)
				assert.NotEmpty(t, o.Err.UserMessage())
			}
		})
	}
}
