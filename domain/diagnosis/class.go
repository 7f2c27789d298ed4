// Package diagnosis defines the classifier's domain: the class enumeration,
// classification results, input tensors and the error taxonomy.
package diagnosis

import "fmt"

// Class is one of the diagnostic categories the model can output.
// The numeric value is the index in the model's output vector.
type Class int

const (
	// ClassAdenocarcinoma is lung adenocarcinoma.
	ClassAdenocarcinoma Class = iota
	// ClassNormal is benign lung tissue.
	ClassNormal
	// ClassSquamousCellCarcinoma is lung squamous cell carcinoma.
	ClassSquamousCellCarcinoma
)

// ClassCount is the size of the class enumeration.
const ClassCount = 3

var classLabels = [ClassCount]string{
	"Lung Adenocarcinoma",
	"Lung Normal",
	"Lung Squamous Cell Carcinoma",
}

// DefaultLabels returns the labels in output-vector order.
func DefaultLabels() []string {
	labels := make([]string, ClassCount)
	copy(labels, classLabels[:])
	return labels
}

// String returns the human-readable label of the class.
func (c Class) String() string {
	if c.IsKnown() {
		return classLabels[c]
	}
	return fmt.Sprintf("Unknown Class (%d)", int(c))
}

// IsKnown reports whether c is part of the enumeration.
func (c Class) IsKnown() bool {
	return c >= 0 && int(c) < ClassCount
}

// IsMalignant reports whether the class is one of the carcinoma categories.
func (c Class) IsMalignant() bool {
	return c == ClassAdenocarcinoma || c == ClassSquamousCellCarcinoma
}

// ClassFromLabel looks up a class by its label.
func ClassFromLabel(label string) (Class, bool) {
	for i, l := range classLabels {
		if l == label {
			return Class(i), true
		}
	}
	return -1, false
}
