package core

import "math"

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns similarity score (higher = more similar).
//
// Vectors of different length, empty vectors, zero-magnitude vectors and
// vectors with non-finite components score 0 rather than producing an error.
// Sums are accumulated in float64 so large or tiny float32 components do not
// overflow or underflow.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		// Infinite or NaN components
		return 0
	}
	return float32(max(-1, min(1, sim)))
}
