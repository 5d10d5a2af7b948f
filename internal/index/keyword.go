package index

import (
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
)

type keywordDoc struct {
	Text string `json:"text"`
}

// Keyword is a per-session inverted index over chunk text, backed by a
// memory-only bleve index. Scoring is bleve's tf-idf relevance; an exact
// phrase match is boosted above bag-of-words matches.
type Keyword struct {
	idx  bleve.Index
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewKeyword() (*Keyword, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Keyword{idx: idx, seen: make(map[string]struct{})}, nil
}

// Add indexes a chunk's text. Adding the same chunk id twice is a no-op.
func (x *Keyword) Add(chunkID, text string) error {
	x.mu.Lock()
	if _, ok := x.seen[chunkID]; ok {
		x.mu.Unlock()
		return nil
	}
	x.seen[chunkID] = struct{}{}
	x.mu.Unlock()
	return x.idx.Index(chunkID, keywordDoc{Text: text})
}

// Len reports the number of indexed chunks.
func (x *Keyword) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.seen)
}

// Search matches q.Text case-insensitively against indexed chunk text.
// Chunks containing the query as an exact phrase rank above partial token
// overlap.
func (x *Keyword) Search(q Query, k int) ([]Hit, error) {
	if strings.TrimSpace(q.Text) == "" || k <= 0 {
		return nil, nil
	}
	phrase := bleve.NewMatchPhraseQuery(q.Text)
	phrase.SetField("text")
	phrase.SetBoost(2.0)
	terms := bleve.NewMatchQuery(q.Text)
	terms.SetField("text")
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(phrase, terms), k, 0, false)

	res, err := x.idx.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ChunkID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Close releases the bleve index.
func (x *Keyword) Close() error {
	return x.idx.Close()
}
