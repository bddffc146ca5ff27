// Package embedding converts text into fixed-dimension float vectors for
// similarity comparison.
//
// Three interchangeable strategies are provided, with graceful degradation:
//
//   - Hash: position-weighted character scattering. Always available and
//     deterministic; the fallback of last resort.
//   - TFIDF: term-frequency / inverse-document-frequency weighting against an
//     injectable corpus statistics component (IDFStats).
//   - External: a pluggable Provider (typically an OpenAI-compatible HTTP
//     embeddings endpoint). Falls back to TF-IDF, then hash.
//
// Degenerate text (empty or punctuation-only) legitimately produces a zero
// vector; callers must treat the resulting similarity of 0 as "no
// information", not a failure.
package embedding

import "math"

// DefaultDimensions matches the MiniLM embedding size used by the original
// memory pipeline.
const DefaultDimensions = 384

// Embedding is a fixed-dimension float vector keyed by the memory record it
// represents. The magnitude is the exact L2 norm computed at creation time.
// An Embedding is immutable once stored; delete and reinsert to change it.
type Embedding struct {
	RecordID  string
	Values    []float32
	Magnitude float32
}

// Dimensions returns the vector dimensionality.
func (e *Embedding) Dimensions() int {
	if e == nil {
		return 0
	}
	return len(e.Values)
}

// newEmbedding wraps values in an Embedding, computing the L2 norm.
func newEmbedding(values []float32) *Embedding {
	return &Embedding{
		Values:    values,
		Magnitude: l2norm(values),
	}
}

// l2norm computes sqrt(sum v_i^2).
func l2norm(values []float32) float32 {
	var sum float64
	for _, v := range values {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum))
}

// normalize scales values in place to unit length. A zero vector is left
// unchanged. Returns the resulting magnitude (1 or 0).
func normalize(values []float32) float32 {
	mag := l2norm(values)
	if mag == 0 {
		return 0
	}
	for i := range values {
		values[i] /= mag
	}
	return 1
}

// Cosine computes the cosine similarity dot(a,b) / (|a|*|b|) between two
// embeddings. It returns 0 when either embedding is nil, the dimensions
// differ, or either magnitude is zero. The result is clamped to [-1, 1] to
// absorb floating-point drift.
func Cosine(a, b *Embedding) float32 {
	if a == nil || b == nil || len(a.Values) != len(b.Values) {
		return 0
	}
	if a.Magnitude == 0 || b.Magnitude == 0 {
		return 0
	}

	var dot float32
	for i := range a.Values {
		dot += a.Values[i] * b.Values[i]
	}

	sim := dot / (a.Magnitude * b.Magnitude)
	if sim < -1 {
		sim = -1
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}
