package diagnosis

import (
	"fmt"
	"math"
)

// Result is an immutable classification result.
type Result struct {
	Class Class
	Label string
	// Confidence is the probability of Class expressed as a percentage in [0, 100].
	Confidence float64
}

// NewResult builds a result from a class index and a probability in [0, 1].
// labels maps output indices to names; indices without a label get
// "Unknown Class (i)". A label naming a known class selects that class.
// Out-of-range or NaN probabilities are clamped.
func NewResult(index int, probability float64, labels []string) Result {
	class := Class(index)
	label := class.String()
	if index >= 0 && index < len(labels) && labels[index] != "" {
		label = labels[index]
		// Models may list the known classes in their own order.
		if c, ok := ClassFromLabel(label); ok {
			class = c
		}
	}
	return Result{
		Class:      class,
		Label:      label,
		Confidence: ClampPercent(probability * 100),
	}
}

// ClampPercent clamps p into [0, 100]. NaN becomes 0.
func ClampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// FormatConfidence renders the confidence with one decimal place, e.g. "87.3 %".
func (r Result) FormatConfidence() string {
	return fmt.Sprintf("%.1f %%", r.Confidence)
}

// Level returns the confidence tier of the result.
func (r Result) Level() ConfidenceLevel {
	return LevelOf(r.Confidence)
}

// String returns "label (confidence)".
func (r Result) String() string {
	return fmt.Sprintf("%s (%s)", r.Label, r.FormatConfidence())
}

// ConfidenceLevel buckets a confidence percentage for display.
type ConfidenceLevel int

const (
	// ConfidenceLow is below 40%.
	ConfidenceLow ConfidenceLevel = iota
	// ConfidenceMedium is at least 40% and below 70%.
	ConfidenceMedium
	// ConfidenceHigh is at least 70%.
	ConfidenceHigh
)

const (
	highConfidenceThreshold   = 70.0
	mediumConfidenceThreshold = 40.0
)

// LevelOf returns the tier of a confidence percentage.
func LevelOf(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= highConfidenceThreshold:
		return ConfidenceHigh
	case confidence >= mediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (l ConfidenceLevel) String() string {
	switch l {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}
