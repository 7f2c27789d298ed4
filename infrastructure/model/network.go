package model

import (
	"fmt"

	"lungscan-go/domain/diagnosis"
)

// Network is a loaded model backend. Implementations are not required to be
// safe for concurrent use; the Invoker serializes calls.
type Network interface {
	// Predict runs the model on a single input and returns one score per class.
	Predict(t *diagnosis.Tensor) ([]float32, error)

	// Close releases backend resources.
	Close() error
}

// openNetwork constructs the backend named by the manifest.
func openNetwork(m *Manifest) (Network, error) {
	switch m.Format {
	case FormatDense:
		return newDenseNetwork(m)
	case FormatONNX:
		return openONNX(m)
	default:
		return nil, fmt.Errorf("unsupported format %q", m.Format)
	}
}
