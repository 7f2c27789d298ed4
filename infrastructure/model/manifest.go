// Package model loads pretrained classifiers and runs them on preprocessed tensors.
package model

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"lungscan-go/domain/diagnosis"
)

// Format names a network backend.
type Format string

const (
	// FormatDense is the built-in pure-Go pooled linear classifier.
	FormatDense Format = "dense"
	// FormatONNX is an ONNX graph run by OpenCV DNN (requires -tags gocv).
	FormatONNX Format = "onnx"
)

// Layout is the memory layout an ONNX graph expects for its input.
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

// Manifest describes a serialized model. It is stored as YAML next to the
// model weights.
type Manifest struct {
	Name       string                `yaml:"name"`
	Format     Format                `yaml:"format"`
	File       string                `yaml:"file"`
	Layout     Layout                `yaml:"layout"`
	Input      diagnosis.Shape       `yaml:"input"`
	PixelRange *diagnosis.PixelRange `yaml:"pixel_range"`
	Labels     []string              `yaml:"labels"`
	Dense      *DenseSpec            `yaml:"dense"`

	// path is the manifest location; relative File paths resolve against its directory.
	path string
}

// DenseSpec holds the weights of a dense network.
type DenseSpec struct {
	// Pooling is "channel_mean" (one feature per channel) or "grid"
	// (Grid×Grid cells per channel).
	Pooling string      `yaml:"pooling"`
	Grid    int         `yaml:"grid"`
	Weights [][]float32 `yaml:"weights"`
	Bias    []float32   `yaml:"bias"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diagnosis.NewModelLoadError("read_manifest", path, err)
	}
	return ParseManifest(data, path)
}

// ParseManifest parses manifest YAML. path is used to resolve the weights file.
func ParseManifest(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, diagnosis.NewModelLoadError("parse_manifest", path, err)
	}
	m.path = path
	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, diagnosis.NewModelLoadError("validate_manifest", path, err)
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Name == "" {
		m.Name = filepath.Base(m.path)
	}
	if m.Input == (diagnosis.Shape{}) {
		m.Input = diagnosis.DefaultShape
	}
	if m.PixelRange == nil {
		r := diagnosis.DefaultPixelRange
		m.PixelRange = &r
	}
	if len(m.Labels) == 0 {
		m.Labels = diagnosis.DefaultLabels()
	}
	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
}

func (m *Manifest) validate() error {
	if err := m.Input.Validate(); err != nil {
		return err
	}
	if m.PixelRange.Max <= m.PixelRange.Min {
		return fmt.Errorf("pixel_range max %v must exceed min %v", m.PixelRange.Max, m.PixelRange.Min)
	}

	switch m.Format {
	case FormatDense:
		return m.validateDense()
	case FormatONNX:
		if m.File == "" {
			return fmt.Errorf("onnx model requires a file")
		}
		if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
			return fmt.Errorf("unknown layout %q", m.Layout)
		}
		return nil
	case "":
		return fmt.Errorf("format is required")
	default:
		return fmt.Errorf("unsupported format %q", m.Format)
	}
}

func (m *Manifest) validateDense() error {
	d := m.Dense
	if d == nil {
		return fmt.Errorf("dense model requires a dense section")
	}
	features, err := d.featureCount(m.Input)
	if err != nil {
		return err
	}
	if len(d.Weights) != len(m.Labels) {
		return fmt.Errorf("dense weights have %d rows, want one per label (%d)", len(d.Weights), len(m.Labels))
	}
	for i, row := range d.Weights {
		if len(row) != features {
			return fmt.Errorf("dense weights row %d has %d columns, want %d", i, len(row), features)
		}
	}
	if len(d.Bias) != 0 && len(d.Bias) != len(m.Labels) {
		return fmt.Errorf("dense bias has %d entries, want %d", len(d.Bias), len(m.Labels))
	}
	return nil
}

func (d *DenseSpec) featureCount(in diagnosis.Shape) (int, error) {
	switch d.Pooling {
	case "", "channel_mean":
		return in.Channels, nil
	case "grid":
		if d.Grid <= 0 || d.Grid > in.Height || d.Grid > in.Width {
			return 0, fmt.Errorf("grid %d invalid for input %s", d.Grid, in)
		}
		return d.Grid * d.Grid * in.Channels, nil
	default:
		return 0, fmt.Errorf("unknown pooling %q", d.Pooling)
	}
}

// Path returns where the manifest was loaded from.
func (m *Manifest) Path() string {
	return m.path
}

// FilePath resolves the weights file relative to the manifest directory.
func (m *Manifest) FilePath() string {
	if m.File == "" || filepath.IsAbs(m.File) {
		return m.File
	}
	return filepath.Join(filepath.Dir(m.path), m.File)
}

// InputSpec returns the preprocessing parameters for this model.
func (m *Manifest) InputSpec() diagnosis.InputSpec {
	return diagnosis.InputSpec{Shape: m.Input, Range: *m.PixelRange}
}
