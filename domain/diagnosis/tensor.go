package diagnosis

import "fmt"

// Shape is the fixed input geometry of a model (batch size is always 1).
type Shape struct {
	Height   int `yaml:"height"`
	Width    int `yaml:"width"`
	Channels int `yaml:"channels"`
}

// DefaultShape is the input geometry of the bundled lung classifier.
var DefaultShape = Shape{Height: 224, Width: 224, Channels: 3}

// Size returns the number of elements in a tensor of this shape.
func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

// Validate reports an error for non-positive dimensions or unsupported channel counts.
func (s Shape) Validate() error {
	if s.Height <= 0 || s.Width <= 0 {
		return fmt.Errorf("invalid shape %s: dimensions must be positive", s)
	}
	if s.Channels != 1 && s.Channels != 3 {
		return fmt.Errorf("invalid shape %s: channels must be 1 or 3", s)
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Tensor is a single image laid out in HWC order.
type Tensor struct {
	Shape Shape
	Data  []float32
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape Shape) *Tensor {
	return &Tensor{Shape: shape, Data: make([]float32, shape.Size())}
}

// At returns the value at row y, column x, channel c.
func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Shape.Width+x)*t.Shape.Channels+c]
}

// Set stores v at row y, column x, channel c.
func (t *Tensor) Set(y, x, c int, v float32) {
	t.Data[(y*t.Shape.Width+x)*t.Shape.Channels+c] = v
}

// Check reports an error if the data length does not match the shape.
func (t *Tensor) Check() error {
	if t == nil {
		return fmt.Errorf("nil tensor")
	}
	if len(t.Data) != t.Shape.Size() {
		return fmt.Errorf("tensor data has %d elements, shape %s needs %d", len(t.Data), t.Shape, t.Shape.Size())
	}
	return nil
}

// PixelRange is the numeric range 8-bit pixel values are scaled into.
type PixelRange struct {
	Min float32 `yaml:"min"`
	Max float32 `yaml:"max"`
}

// DefaultPixelRange keeps raw 0..255 values; the bundled model rescales internally.
var DefaultPixelRange = PixelRange{Min: 0, Max: 255}

// Scale maps an 8-bit value into the range.
func (r PixelRange) Scale(v uint8) float32 {
	return r.Min + float32(v)/255*(r.Max-r.Min)
}

// InputSpec is everything the preprocessor needs to produce a model input.
type InputSpec struct {
	Shape Shape
	Range PixelRange
}

// DefaultInputSpec is the input of the bundled lung classifier.
func DefaultInputSpec() InputSpec {
	return InputSpec{Shape: DefaultShape, Range: DefaultPixelRange}
}
