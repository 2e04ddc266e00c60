// ABOUTME: Vector helpers for embeddings
// ABOUTME: Unit normalisation makes squared Euclidean distance equal 2 - 2*cosine
package llm

import "math"

// Normalize scales v to unit L2 length in place and returns it; zero vectors are unchanged
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}
