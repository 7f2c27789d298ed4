// Package modeltest writes small models and sample images for tests.
package modeltest

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"lungscan-go/domain/diagnosis"
)

// DenseManifest is a 32×32 RGB model that maps a dominant red channel to
// adenocarcinoma, green to normal and blue to squamous cell carcinoma.
const DenseManifest = `name: color-dominance
format: dense
input:
  height: 32
  width: 32
  channels: 3
pixel_range:
  min: 0
  max: 1
labels:
  - Lung Adenocarcinoma
  - Lung Normal
  - Lung Squamous Cell Carcinoma
dense:
  pooling: channel_mean
  weights:
    - [10, -5, -5]
    - [-5, 10, -5]
    - [-5, -5, 10]
  bias: [0, 0, 0]
`

// SampleColors are the dominant colors matching DenseManifest, by class.
var SampleColors = map[diagnosis.Class]color.NRGBA{
	diagnosis.ClassAdenocarcinoma:        {R: 220, G: 40, B: 60, A: 0xff},
	diagnosis.ClassNormal:                {R: 30, G: 210, B: 50, A: 0xff},
	diagnosis.ClassSquamousCellCarcinoma: {R: 40, G: 60, B: 230, A: 0xff},
}

// WriteDenseManifest writes DenseManifest into dir and returns its path.
func WriteDenseManifest(t testing.TB, dir string) string {
	t.Helper()
	return WriteFile(t, dir, "model.yaml", DenseManifest)
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteSample writes a noisy 64×48 PNG dominated by the class's sample color.
func WriteSample(t testing.TB, dir string, class diagnosis.Class) string {
	t.Helper()
	c := SampleColors[class]
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			jitter := uint8((x*7 + y*13) % 20)
			img.SetNRGBA(x, y, color.NRGBA{R: c.R - jitter/2, G: c.G - jitter/2, B: c.B - jitter/2, A: 0xff})
		}
	}
	path := filepath.Join(dir, class.String()+".png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}
