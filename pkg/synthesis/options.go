// Package synthesis fuses ranked candidates from multiple independent memory
// backends (vector, graph, keyword, working memory) into one deduplicated
// ranking.
//
// Backends are best-effort: an unavailable or failing backend is logged and
// contributes nothing, and a query with no usable backend returns a valid
// empty result set. Partial results beat total failure in a recall system.
package synthesis

// Algorithm determines how results from multiple backends are combined.
type Algorithm int

const (
	// AlgorithmUnion keeps all deduplicated candidates, sorted by combined
	// score.
	AlgorithmUnion Algorithm = iota
	// AlgorithmIntersection keeps only candidates confirmed by every backend
	// enabled for the query.
	AlgorithmIntersection
	// AlgorithmWeighted recomputes each combined score as the sum of the
	// per-backend weighted scores, then sorts.
	AlgorithmWeighted
	// AlgorithmHierarchical trusts the score accumulated in backend insertion
	// order (vector, graph, keyword, working) and sorts.
	AlgorithmHierarchical
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmIntersection:
		return "intersection"
	case AlgorithmWeighted:
		return "weighted"
	case AlgorithmHierarchical:
		return "hierarchical"
	default:
		return "union"
	}
}

// ParseAlgorithm converts an algorithm name to an Algorithm. Unknown names
// map to AlgorithmUnion.
func ParseAlgorithm(name string) Algorithm {
	switch name {
	case "intersection":
		return AlgorithmIntersection
	case "weighted":
		return AlgorithmWeighted
	case "hierarchical":
		return AlgorithmHierarchical
	default:
		return AlgorithmUnion
	}
}

// DefaultMaxResults bounds a recall when options leave MaxResults unset.
const DefaultMaxResults = 20

// DefaultRelationClass is the single relation class the graph backend
// traverses during synthesis.
const DefaultRelationClass = "similar"

// graphNeighborLimit caps related records pulled per existing candidate.
const graphNeighborLimit = 5

// RecallOptions controls which backends a recall queries and how their
// results are weighted and combined.
type RecallOptions struct {
	// Backend enable flags
	UseVector  bool
	UseGraph   bool
	UseKeyword bool
	UseWorking bool

	// Backend weights, applied as each backend's results are collected
	WeightVector  float64
	WeightGraph   float64
	WeightKeyword float64
	WeightWorking float64

	// SimilarityThreshold is the minimum cosine similarity for vector
	// matches, 0.0-1.0.
	SimilarityThreshold float64

	// MaxResults bounds the final result set; 0 selects DefaultMaxResults.
	MaxResults int

	// Algorithm selects how backend results are fused.
	Algorithm Algorithm
}

// DefaultOptions enables every backend with the standard weights and the
// weighted fusion algorithm.
func DefaultOptions() RecallOptions {
	return RecallOptions{
		UseVector:           true,
		UseGraph:            true,
		UseKeyword:          true,
		UseWorking:          true,
		WeightVector:        0.3,
		WeightGraph:         0.3,
		WeightKeyword:       0.3,
		WeightWorking:       0.1,
		SimilarityThreshold: 0.3,
		MaxResults:          DefaultMaxResults,
		Algorithm:           AlgorithmWeighted,
	}
}

// SemanticOptions favors vector similarity with working-memory support.
func SemanticOptions() RecallOptions {
	return RecallOptions{
		UseVector:           true,
		UseWorking:          true,
		WeightVector:        0.8,
		WeightWorking:       0.2,
		SimilarityThreshold: 0.3,
		MaxResults:          DefaultMaxResults,
		Algorithm:           AlgorithmUnion,
	}
}

// RelationshipOptions favors graph traversal backed by keyword confirmation.
func RelationshipOptions() RecallOptions {
	return RecallOptions{
		UseGraph:            true,
		UseKeyword:          true,
		WeightGraph:         0.7,
		WeightKeyword:       0.3,
		SimilarityThreshold: 0.3,
		MaxResults:          DefaultMaxResults,
		Algorithm:           AlgorithmHierarchical,
	}
}

// maxResults resolves the effective result bound.
func (o *RecallOptions) maxResults() int {
	if o.MaxResults > 0 {
		return o.MaxResults
	}
	return DefaultMaxResults
}
