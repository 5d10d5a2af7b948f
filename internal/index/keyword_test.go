package index

import (
	"testing"
)

func newKeyword(t *testing.T) *Keyword {
	t.Helper()
	x, err := NewKeyword()
	if err != nil {
		t.Fatalf("NewKeyword: %v", err)
	}
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestKeywordSearchRelevance(t *testing.T) {
	x := newKeyword(t)
	docs := map[string]string{
		"d1#000": "The capital of France is Paris and it sits on the Seine.",
		"d1#001": "Grapes are grown in many regions of France for wine.",
		"d1#002": "This chunk is about container orchestration and kubernetes.",
	}
	for id, text := range docs {
		if err := x.Add(id, text); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	hits, err := x.Search(Query{Text: "capital of France"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if hits[0].ChunkID != "d1#000" {
		t.Fatalf("expected phrase match first, got %+v", hits)
	}
}

func TestKeywordSearchCaseInsensitive(t *testing.T) {
	x := newKeyword(t)
	if err := x.Add("c1", "paris is lovely in spring"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hits, err := x.Search(Query{Text: "PARIS"}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c1" {
		t.Fatalf("case-insensitive match failed: %+v", hits)
	}
}

func TestKeywordSearchEmptyIndex(t *testing.T) {
	x := newKeyword(t)
	hits, err := x.Search(Query{Text: "anything"}, 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestKeywordSearchBlankQuery(t *testing.T) {
	x := newKeyword(t)
	hits, err := x.Search(Query{Text: "   "}, 5)
	if err != nil || hits != nil {
		t.Fatalf("blank query should be empty/nil, got %v %v", hits, err)
	}
}

func TestKeywordAddIdempotent(t *testing.T) {
	x := newKeyword(t)
	if err := x.Add("c1", "alpha beta gamma"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := x.Add("c1", "alpha beta gamma"); err != nil {
		t.Fatalf("duplicate Add: %v", err)
	}
	if x.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", x.Len())
	}
	hits, _ := x.Search(Query{Text: "alpha"}, 10)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit after duplicate add, got %d", len(hits))
	}
}
