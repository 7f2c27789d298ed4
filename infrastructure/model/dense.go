package model

import (
	"fmt"

	"lungscan-go/domain/diagnosis"
)

// denseNetwork pools the input into a small feature vector and applies a
// linear layer followed by softmax.
type denseNetwork struct {
	input   diagnosis.Shape
	pooling string
	grid    int
	weights [][]float32
	bias    []float32
}

func newDenseNetwork(m *Manifest) (*denseNetwork, error) {
	if m.Dense == nil {
		return nil, fmt.Errorf("missing dense section")
	}
	grid := m.Dense.Grid
	pooling := m.Dense.Pooling
	if pooling == "" || pooling == "channel_mean" {
		pooling = "grid"
		grid = 1
	}
	return &denseNetwork{
		input:   m.Input,
		pooling: pooling,
		grid:    grid,
		weights: m.Dense.Weights,
		bias:    m.Dense.Bias,
	}, nil
}

func (n *denseNetwork) Predict(t *diagnosis.Tensor) ([]float32, error) {
	if err := t.Check(); err != nil {
		return nil, err
	}
	if t.Shape != n.input {
		return nil, fmt.Errorf("input shape %s does not match model input %s", t.Shape, n.input)
	}

	features := n.pool(t)

	logits := make([]float64, len(n.weights))
	for i, row := range n.weights {
		var sum float64
		for j, w := range row {
			sum += float64(w) * features[j]
		}
		if len(n.bias) > 0 {
			sum += float64(n.bias[i])
		}
		logits[i] = sum
	}

	probs := softmax(logits)
	out := make([]float32, len(probs))
	for i, p := range probs {
		out[i] = float32(p)
	}
	return out, nil
}

// pool averages the tensor over a grid×grid partition, channel-minor.
func (n *denseNetwork) pool(t *diagnosis.Tensor) []float64 {
	s := t.Shape
	features := make([]float64, n.grid*n.grid*s.Channels)
	counts := make([]int, n.grid*n.grid)

	for y := 0; y < s.Height; y++ {
		gy := y * n.grid / s.Height
		for x := 0; x < s.Width; x++ {
			gx := x * n.grid / s.Width
			cell := gy*n.grid + gx
			counts[cell]++
			for c := 0; c < s.Channels; c++ {
				features[cell*s.Channels+c] += float64(t.At(y, x, c))
			}
		}
	}

	for cell, count := range counts {
		if count == 0 {
			continue
		}
		for c := 0; c < s.Channels; c++ {
			features[cell*s.Channels+c] /= float64(count)
		}
	}
	return features
}

func (n *denseNetwork) Close() error {
	return nil
}

var _ Network = (*denseNetwork)(nil)
