package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// Local is a feature-hashing bag-of-words embedder. It needs no external
// model, is deterministic for identical text, and captures enough lexical
// similarity to make hybrid retrieval work offline. It is the default
// provider and the one the tests run against.
type Local struct {
	dimension int
}

func NewLocal(dimension int) *Local {
	if dimension <= 0 {
		dimension = 256
	}
	return &Local{dimension: dimension}
}

func (l *Local) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = l.embed(text)
	}
	return vecs, nil
}

func (l *Local) embed(text string) []float32 {
	v := make([]float32, l.dimension)
	for _, term := range splitTerms(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		bucket := int(h.Sum32()) % l.dimension
		if bucket < 0 {
			bucket += l.dimension
		}
		// Sign hashing keeps buckets from accumulating only positive mass.
		if h.Sum32()&1 == 0 {
			v[bucket]++
		} else {
			v[bucket]--
		}
	}
	return v
}

func splitTerms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
