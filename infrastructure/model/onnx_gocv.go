//go:build gocv

package model

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"lungscan-go/domain/diagnosis"
)

// onnxNetwork runs an ONNX graph through OpenCV's DNN module.
type onnxNetwork struct {
	net    gocv.Net
	input  diagnosis.Shape
	layout Layout
}

func openONNX(m *Manifest) (Network, error) {
	path := m.FilePath()
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("opencv could not read network from %s", path)
	}

	return &onnxNetwork{net: net, input: m.Input, layout: m.Layout}, nil
}

func (n *onnxNetwork) Predict(t *diagnosis.Tensor) ([]float32, error) {
	if err := t.Check(); err != nil {
		return nil, err
	}
	if t.Shape != n.input {
		return nil, fmt.Errorf("input shape %s does not match model input %s", t.Shape, n.input)
	}

	s := t.Shape
	sizes := []int{1, s.Height, s.Width, s.Channels}
	if n.layout == LayoutNCHW {
		sizes = []int{1, s.Channels, s.Height, s.Width}
	}

	blob := gocv.NewMatWithSizes(sizes, gocv.MatTypeCV32F)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access input blob: %w", err)
	}
	if n.layout == LayoutNCHW {
		plane := s.Height * s.Width
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				for c := 0; c < s.Channels; c++ {
					data[c*plane+y*s.Width+x] = t.At(y, x, c)
				}
			}
		}
	} else {
		copy(data, t.Data)
	}

	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("network produced no output")
	}

	scores, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	out := make([]float32, len(scores))
	copy(out, scores)
	return out, nil
}

func (n *onnxNetwork) Close() error {
	return n.net.Close()
}

var _ Network = (*onnxNetwork)(nil)
