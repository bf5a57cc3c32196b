// Package selection scores candidate embeddings against a reference and
// partitions them by a cutoff derived from the score distribution.
package selection

import (
	"fmt"
	"math"
)

// Cosine returns the cosine similarity of a and b.
//
// Vectors must share a nonzero dimensionality. A zero-magnitude vector yields
// 0 rather than NaN. Components are scaled by the largest absolute value of
// each vector before accumulating in float64, so inputs whose magnitudes span
// many orders of magnitude neither overflow nor underflow.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	sa := maxAbs(a)
	sb := maxAbs(b)
	if sa == 0 || sb == 0 {
		return 0, nil
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i]) / sa
		y := float64(b[i]) / sb
		dot = math.FMA(x, y, dot)
		na = math.FMA(x, x, na)
		nb = math.FMA(y, y, nb)
	}
	// Each scaled vector has a unit component, so na, nb >= 1 and na*nb cannot overflow.
	sim := dot / math.Sqrt(na*nb)
	return clamp(sim, -1, 1), nil
}

// CosineBatch scores every candidate vector against reference, preserving order.
func CosineBatch(reference []float32, vectors [][]float32) ([]float64, error) {
	scores := make([]float64, len(vectors))
	for i, vec := range vectors {
		s, err := Cosine(reference, vec)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		scores[i] = s
	}
	return scores, nil
}

// ScoreCandidates is CosineBatch over the vectors carried by candidates.
func ScoreCandidates(ref Reference, candidates []Candidate) ([]float64, error) {
	vectors := make([][]float32, len(candidates))
	for i := range candidates {
		vectors[i] = candidates[i].Vector
	}
	return CosineBatch(ref.Vector, vectors)
}

func maxAbs(v []float32) float64 {
	var m float64
	for _, x := range v {
		ax := math.Abs(float64(x))
		if ax > m {
			m = ax
		}
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
