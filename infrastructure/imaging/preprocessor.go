// Package imaging decodes image files and turns them into model input tensors.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	// Registered decoders. The set mirrors SupportedExtensions.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"lungscan-go/domain/diagnosis"
)

// SupportedExtensions lists the accepted image file extensions (lower case).
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp"}

// Config holds preprocessor options.
type Config struct {
	// MaxPixels rejects images whose decoded size would exceed this many pixels.
	MaxPixels int
	Logger    *slog.Logger
}

// DefaultConfig returns default preprocessor options.
func DefaultConfig() *Config {
	return &Config{
		MaxPixels: 100_000_000,
	}
}

// Preprocessor loads images from disk and normalizes them into tensors.
// It holds no mutable state and is safe for concurrent use.
type Preprocessor struct {
	maxPixels int
	logger    *slog.Logger
}

// NewPreprocessor creates a preprocessor. A nil config uses DefaultConfig.
func NewPreprocessor(cfg *Config) *Preprocessor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultConfig().MaxPixels
	}
	return &Preprocessor{
		maxPixels: cfg.MaxPixels,
		logger:    cfg.Logger,
	}
}

// IsSupported reports whether path has a supported image extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Validate checks that path exists, is a regular file and has a supported extension.
func (p *Preprocessor) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return diagnosis.NewDecodeError("validate", path, fmt.Errorf("image does not exist"))
		}
		return diagnosis.NewDecodeError("validate", path, err)
	}
	if info.IsDir() {
		return diagnosis.NewDecodeError("validate", path, fmt.Errorf("path is a directory"))
	}
	if !IsSupported(path) {
		return unsupportedError("validate", path)
	}
	return nil
}

func unsupportedError(op, path string) *diagnosis.Error {
	return diagnosis.NewDecodeError(op, path, fmt.Errorf(
		"unsupported image format %q, supported formats: %s",
		filepath.Ext(path), strings.Join(SupportedExtensions, ", ")))
}

// LoadAndNormalize decodes the image at path, resizes it to spec.Shape and
// scales its pixels into spec.Range. The result is deterministic for a given
// file and spec. On failure no tensor is returned.
func (p *Preprocessor) LoadAndNormalize(path string, spec diagnosis.InputSpec) (*diagnosis.Tensor, error) {
	if err := spec.Shape.Validate(); err != nil {
		return nil, diagnosis.NewInferenceError("preprocess", err)
	}

	img, err := p.Decode(path)
	if err != nil {
		return nil, err
	}

	resized := resizeOpaque(img, spec.Shape.Width, spec.Shape.Height)
	tensor := toTensor(resized, spec)

	p.logger.Debug("Image normalized",
		"path", path,
		"source_size", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()),
		"shape", spec.Shape.String())
	return tensor, nil
}

// Decode reads and decodes the image at path. Files without a supported
// extension are rejected whatever their content.
func (p *Preprocessor) Decode(path string) (image.Image, error) {
	if !IsSupported(path) {
		return nil, unsupportedError("decode", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, diagnosis.NewDecodeError("open", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, diagnosis.NewDecodeError("decode", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, diagnosis.NewDecodeError("decode", path, fmt.Errorf("empty image"))
	}
	if cfg.Width*cfg.Height > p.maxPixels {
		return nil, diagnosis.NewDecodeError("decode", path,
			fmt.Errorf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, p.maxPixels))
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, diagnosis.NewDecodeError("open", path, err)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, diagnosis.NewDecodeError("decode", path, err)
	}
	return img, nil
}

// Preview decodes the image at path and downsizes it so that neither side
// exceeds maxSide. Images already small enough are returned unscaled.
func (p *Preprocessor) Preview(path string, maxSide int) (image.Image, error) {
	img, err := p.Decode(path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img, nil
	}

	w, h := maxSide, maxSide
	if b.Dx() >= b.Dy() {
		h = max(1, b.Dy()*maxSide/b.Dx())
	} else {
		w = max(1, b.Dx()*maxSide/b.Dy())
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// resizeOpaque converts img to straight (non-premultiplied) RGB, discarding
// alpha, and resamples it to w×h.
func resizeOpaque(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	flat := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		// Copy rows directly so fully transparent pixels keep their color.
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			srcOff := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(flat.Pix[y*flat.Stride:y*flat.Stride+rowLen], src.Pix[srcOff:srcOff+rowLen])
		}
	} else {
		draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Src)
	}
	for i := 3; i < len(flat.Pix); i += 4 {
		flat.Pix[i] = 0xff
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), flat, flat.Bounds(), draw.Src, nil)
	return dst
}

func toTensor(img *image.NRGBA, spec diagnosis.InputSpec) *diagnosis.Tensor {
	t := diagnosis.NewTensor(spec.Shape)
	for y := 0; y < spec.Shape.Height; y++ {
		for x := 0; x < spec.Shape.Width; x++ {
			off := img.PixOffset(x, y)
			r, g, b := img.Pix[off], img.Pix[off+1], img.Pix[off+2]
			if spec.Shape.Channels == 1 {
				gray := color.GrayModel.Convert(color.NRGBA{R: r, G: g, B: b, A: 0xff}).(color.Gray)
				t.Set(y, x, 0, spec.Range.Scale(gray.Y))
				continue
			}
			t.Set(y, x, 0, spec.Range.Scale(r))
			t.Set(y, x, 1, spec.Range.Scale(g))
			t.Set(y, x, 2, spec.Range.Scale(b))
		}
	}
	return t
}
