package model

import "math"

// probabilityTolerance is how far a score vector may sum from 1 and still be
// treated as probabilities.
const probabilityTolerance = 1e-3

func softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// toProbabilities returns scores unchanged when they already form a
// probability distribution, otherwise their softmax.
func toProbabilities(scores []float32) []float64 {
	out := make([]float64, len(scores))
	var sum float64
	isDistribution := true
	for i, s := range scores {
		out[i] = float64(s)
		sum += out[i]
		if out[i] < 0 || out[i] > 1 {
			isDistribution = false
		}
	}
	if isDistribution && math.Abs(sum-1) <= probabilityTolerance {
		return out
	}
	return softmax(out)
}

// argmax returns the index of the largest value; ties resolve to the lowest index.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func hasNonFinite(scores []float32) bool {
	for _, s := range scores {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}
