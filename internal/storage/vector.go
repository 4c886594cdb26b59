package storage

import "math"

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped to [0,1]. Mismatched dimensions or zero vectors yield 0 rather
// than an error: a speaker without a comparable embedding is simply not
// similar. Postgres delegates this to pgvector; the SQLite and in-memory
// backends compute it here.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
