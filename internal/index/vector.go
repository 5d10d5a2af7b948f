package index

import (
	"math"
	"sort"
	"sync"
)

// Vector is an in-memory nearest-neighbor index over chunk embeddings using
// cosine similarity. Insertion is incremental and atomic per chunk; readers
// running concurrently with writers see only fully inserted chunks.
type Vector struct {
	mu   sync.RWMutex
	ids  []string
	vecs [][]float32
	seen map[string]struct{}
}

func NewVector() *Vector {
	return &Vector{seen: make(map[string]struct{})}
}

// Add inserts a chunk's embedding. Re-adding an already present chunk id is a
// no-op, which keeps retried indexing idempotent.
func (x *Vector) Add(chunkID string, vec []float32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.seen[chunkID]; ok {
		return
	}
	x.seen[chunkID] = struct{}{}
	x.ids = append(x.ids, chunkID)
	x.vecs = append(x.vecs, vec)
}

// Len reports the number of indexed chunks.
func (x *Vector) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Search returns the top k chunks by cosine similarity to q.Vector. Ties are
// broken by insertion order, which follows document order.
func (x *Vector) Search(q Query, k int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.ids) == 0 || len(q.Vector) == 0 || k <= 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(x.ids))
	for i, v := range x.vecs {
		hits = append(hits, Hit{ChunkID: x.ids[i], Score: cosine(q.Vector, v)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
