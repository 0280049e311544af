// Package index implements a durable similarity collection. Items carry a
// content-derived vector and are scored against queries with cosine
// similarity. The collection persists to a single human-readable JSON file
// that is safe to hand-edit or delete between runs.
package index

import "math"

// Cosine returns the cosine similarity between two vectors,
// dot(a,b) / (|a| * |b|). Vectors of different lengths and vectors with a
// zero norm score 0 instead of failing.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
