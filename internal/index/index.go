// Package index holds the two per-session retrieval structures: a dense
// vector index and a keyword index. Both expose the same Search capability so
// the hybrid engine stays agnostic to the backing data structure.
package index

// Query carries both representations of the caller's question; each index
// consumes the signal it understands.
type Query struct {
	Text   string
	Vector []float32
}

// Hit is one ranked candidate from a single signal.
type Hit struct {
	ChunkID string
	Score   float64
}

// Searcher returns up to k candidates ranked by the index's own score scale.
// Searching an empty index yields an empty result, not an error.
type Searcher interface {
	Search(q Query, k int) ([]Hit, error)
}
