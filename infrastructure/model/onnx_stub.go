//go:build !gocv

package model

import "fmt"

func openONNX(m *Manifest) (Network, error) {
	return nil, fmt.Errorf("ONNX backend not available: rebuild with -tags gocv to load %s", m.FilePath())
}
