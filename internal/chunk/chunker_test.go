package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/docchat/internal/extract"
)

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func TestSplitWindowBounds(t *testing.T) {
	c := New(WordTokenizer{}, 20, 0.15)
	pages := []extract.Page{{Number: 1, Text: words(95, "w")}}
	chunks := c.Split("doc1", pages)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if i < len(chunks)-1 && ch.Tokens != 20 {
			t.Fatalf("chunk %d has %d tokens, want window size 20", i, ch.Tokens)
		}
		if ch.Tokens > 20 {
			t.Fatalf("chunk %d exceeds window: %d tokens", i, ch.Tokens)
		}
	}
}

func TestSplitOverlap(t *testing.T) {
	c := New(WordTokenizer{}, 20, 0.15)
	wantOverlap := c.OverlapTokens() // 3 for window 20, 15%
	if wantOverlap != 3 {
		t.Fatalf("overlap tokens = %d, want 3", wantOverlap)
	}
	pages := []extract.Page{{Number: 1, Text: words(60, "tok")}}
	chunks := c.Split("d", pages)
	tok := WordTokenizer{}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.Start >= prev.End {
			t.Fatalf("chunks %d/%d do not overlap", i-1, i)
		}
		shared := len(tok.Spans(pages[0].Text[cur.Start:prev.End]))
		if shared < wantOverlap-1 || shared > wantOverlap+1 {
			t.Fatalf("overlap between chunks %d/%d = %d tokens, want %d±1", i-1, i, shared, wantOverlap)
		}
	}
}

func TestSplitLastChunkShorter(t *testing.T) {
	c := New(WordTokenizer{}, 20, 0.15)
	chunks := c.Split("d", []extract.Page{{Number: 1, Text: words(45, "x")}})
	last := chunks[len(chunks)-1]
	if last.Tokens >= 20 {
		t.Fatalf("expected short final chunk, got %d tokens", last.Tokens)
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := New(WordTokenizer{}, 20, 0.15)
	pages := []extract.Page{{Number: 1, Text: words(100, "a")}, {Number: 2, Text: words(40, "b")}}
	first := c.Split("d", pages)
	second := c.Split("d", pages)
	if len(first) != len(second) {
		t.Fatalf("chunk count differs between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitPageProvenance(t *testing.T) {
	c := New(WordTokenizer{}, 10, 0.2)
	pages := []extract.Page{
		{Number: 1, Text: words(12, "one")},
		{Number: 2, Text: words(12, "two")},
	}
	chunks := c.Split("d", pages)
	if chunks[0].Page != 1 {
		t.Fatalf("first chunk page = %d, want 1", chunks[0].Page)
	}
	last := chunks[len(chunks)-1]
	if last.Page != 2 {
		t.Fatalf("last chunk page = %d, want 2", last.Page)
	}
	for _, ch := range chunks {
		if !strings.HasPrefix(ch.ID, "d#") {
			t.Fatalf("chunk id %q missing doc prefix", ch.ID)
		}
	}
}

func TestSplitEmptyAndScanned(t *testing.T) {
	c := New(WordTokenizer{}, 20, 0.15)
	if got := c.Split("d", nil); got != nil {
		t.Fatalf("expected no chunks for no pages, got %d", len(got))
	}
	chunks := c.Split("d", []extract.Page{
		{Number: 1, Text: "", Scanned: true},
		{Number: 2, Text: words(8, "p")},
	})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Page != 2 {
		t.Fatalf("chunk page = %d, want 2", chunks[0].Page)
	}
}

func TestSplitSingleShortDocument(t *testing.T) {
	c := New(WordTokenizer{}, 512, 0.15)
	chunks := c.Split("d", []extract.Page{{Number: 1, Text: "just a few words"}})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Tokens != 4 {
		t.Fatalf("token count = %d, want 4", chunks[0].Tokens)
	}
}

func TestWordTokenizerSpans(t *testing.T) {
	spans := WordTokenizer{}.Spans("Hello, world 42!")
	if len(spans) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(spans))
	}
	text := "Hello, world 42!"
	got := []string{}
	for _, s := range spans {
		got = append(got, text[s.Start:s.End])
	}
	want := []string{"Hello", "world", "42"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}
