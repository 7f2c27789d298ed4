package imaging

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"lungscan-go/domain/diagnosis"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: 0xff})
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func smallSpec() diagnosis.InputSpec {
	return diagnosis.InputSpec{
		Shape: diagnosis.Shape{Height: 16, Width: 16, Channels: 3},
		Range: diagnosis.DefaultPixelRange,
	}
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"scan.jpg", true},
		{"scan.JPEG", true},
		{"scan.png", true},
		{"scan.bmp", true},
		{"scan.tiff", true},
		{"scan.tif", true},
		{"scan.webp", true},
		{"scan.gif", false},
		{"scan.txt", false},
		{"scan", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsSupported(tt.path))
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)

	good := writePNG(t, dir, "ok.png", solidImage(4, 4, color.NRGBA{R: 1, A: 0xff}))
	require.NoError(t, p.Validate(good))

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))

	for _, path := range []string{txt, filepath.Join(dir, "missing.png"), dir} {
		err := p.Validate(path)
		assert.ErrorIs(t, err, diagnosis.ErrDecode, path)
	}
}

func TestLoadAndNormalize_UnsupportedAlwaysDecodeError(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)

	corrupt := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("\x89PNG\r\n\x1a\nnot really"), 0o644))

	text := filepath.Join(dir, "text.jpg")
	require.NoError(t, os.WriteFile(text, []byte("just some text"), 0o644))

	empty := filepath.Join(dir, "empty.bmp")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	paths := []string{
		corrupt,
		text,
		empty,
		filepath.Join(dir, "missing.png"),
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				tensor, err := p.LoadAndNormalize(path, smallSpec())
				assert.Nil(t, tensor)
				require.Error(t, err)
				assert.ErrorIs(t, err, diagnosis.ErrDecode)
			}
		})
	}
}

func TestLoadAndNormalize_RejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)

	// Valid PNG content under a name outside the whitelist
	path := writePNG(t, dir, "notes.txt", solidImage(4, 4, color.NRGBA{G: 0xff, A: 0xff}))

	tensor, err := p.LoadAndNormalize(path, smallSpec())
	assert.Nil(t, tensor)
	assert.ErrorIs(t, err, diagnosis.ErrDecode)
	assert.Contains(t, err.Error(), "unsupported image format")

	_, err = p.Preview(path, 100)
	assert.ErrorIs(t, err, diagnosis.ErrDecode)
}

func TestLoadAndNormalize_Deterministic(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)
	path := writePNG(t, dir, "gradient.png", gradientImage(97, 61))

	spec := diagnosis.InputSpec{Shape: diagnosis.DefaultShape, Range: diagnosis.DefaultPixelRange}

	first, err := p.LoadAndNormalize(path, spec)
	require.NoError(t, err)
	require.Len(t, first.Data, diagnosis.DefaultShape.Size())

	for i := 0; i < 5; i++ {
		again, err := p.LoadAndNormalize(path, spec)
		require.NoError(t, err)
		require.Equal(t, first.Data, again.Data, "run %d differs", i)
	}
}

func TestLoadAndNormalize_SolidColor(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)
	path := writePNG(t, dir, "solid.png", solidImage(40, 30, color.NRGBA{R: 200, G: 100, B: 50, A: 0xff}))

	tensor, err := p.LoadAndNormalize(path, smallSpec())
	require.NoError(t, err)
	require.NoError(t, tensor.Check())

	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			assert.InDelta(t, 200, tensor.At(y, x, 0), 1)
			assert.InDelta(t, 100, tensor.At(y, x, 1), 1)
			assert.InDelta(t, 50, tensor.At(y, x, 2), 1)
		}
	}
}

func TestLoadAndNormalize_Range(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)
	path := writePNG(t, dir, "white.png", solidImage(8, 8, color.NRGBA{R: 255, G: 255, B: 255, A: 0xff}))

	spec := smallSpec()
	spec.Range = diagnosis.PixelRange{Min: -1, Max: 1}

	tensor, err := p.LoadAndNormalize(path, spec)
	require.NoError(t, err)
	for _, v := range tensor.Data {
		assert.InDelta(t, 1, v, 1e-5)
	}
}

func TestLoadAndNormalize_DropsAlpha(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)
	path := writePNG(t, dir, "transparent.png", solidImage(8, 8, color.NRGBA{R: 10, G: 20, B: 30, A: 0}))

	tensor, err := p.LoadAndNormalize(path, smallSpec())
	require.NoError(t, err)
	assert.InDelta(t, 10, tensor.At(0, 0, 0), 1)
	assert.InDelta(t, 20, tensor.At(0, 0, 1), 1)
	assert.InDelta(t, 30, tensor.At(0, 0, 2), 1)
}

func TestLoadAndNormalize_Grayscale(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)

	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	path := writePNG(t, dir, "gray.png", gray)

	// Grayscale input expanded to three channels
	tensor, err := p.LoadAndNormalize(path, smallSpec())
	require.NoError(t, err)
	assert.InDelta(t, 128, tensor.At(3, 3, 0), 1)
	assert.InDelta(t, 128, tensor.At(3, 3, 1), 1)
	assert.InDelta(t, 128, tensor.At(3, 3, 2), 1)

	// Single-channel model input
	spec := smallSpec()
	spec.Shape.Channels = 1
	tensor, err = p.LoadAndNormalize(path, spec)
	require.NoError(t, err)
	assert.Len(t, tensor.Data, 16*16)
	assert.InDelta(t, 128, tensor.At(0, 0, 0), 1)
}

func TestLoadAndNormalize_Formats(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)
	img := solidImage(12, 12, color.NRGBA{R: 0, G: 255, B: 0, A: 0xff})

	encoders := map[string]func(f *os.File) error{
		"scan.png":  func(f *os.File) error { return png.Encode(f, img) },
		"scan.jpg":  func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 100}) },
		"scan.bmp":  func(f *os.File) error { return bmp.Encode(f, img) },
		"scan.tiff": func(f *os.File) error { return tiff.Encode(f, img, nil) },
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			f, err := os.Create(path)
			require.NoError(t, err)
			require.NoError(t, encode(f))
			require.NoError(t, f.Close())

			require.NoError(t, p.Validate(path))
			tensor, err := p.LoadAndNormalize(path, smallSpec())
			require.NoError(t, err)
			assert.InDelta(t, 255, tensor.At(8, 8, 1), 3)
			assert.InDelta(t, 0, tensor.At(8, 8, 0), 3)
		})
	}
}

func TestLoadAndNormalize_InvalidShape(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)
	path := writePNG(t, dir, "ok.png", solidImage(4, 4, color.NRGBA{A: 0xff}))

	spec := smallSpec()
	spec.Shape.Width = 0
	tensor, err := p.LoadAndNormalize(path, spec)
	assert.Nil(t, tensor)
	assert.ErrorIs(t, err, diagnosis.ErrInference)
}

func TestDecode_TooLarge(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(&Config{MaxPixels: 50})
	path := writePNG(t, dir, "big.png", solidImage(10, 10, color.NRGBA{A: 0xff}))

	_, err := p.Decode(path)
	assert.ErrorIs(t, err, diagnosis.ErrDecode)
}

func TestPreview(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(nil)
	path := writePNG(t, dir, "wide.png", gradientImage(400, 100))

	img, err := p.Preview(path, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	small, err := p.Preview(path, 1000)
	require.NoError(t, err)
	assert.Equal(t, 400, small.Bounds().Dx())
}
