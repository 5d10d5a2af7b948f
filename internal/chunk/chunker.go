// Package chunk splits extracted page text into overlapping token-bounded
// chunks with stable provenance (document, page, offsets).
package chunk

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/docchat/internal/extract"
)

// pageBreak joins page texts in the concatenated document text. Offsets on
// either side of it still attribute to the correct page.
const pageBreak = "\n\n"

// Chunk is the atomic unit of indexing and retrieval.
type Chunk struct {
	ID      string // "<docID>#<ordinal>"
	DocID   string
	Ordinal int
	Page    int // 1-based page on which the chunk starts
	Start   int // byte offset into the concatenated document text
	End     int
	Tokens  int
	Text    string
}

// Chunker walks a sliding token window of size window, advancing by
// window*(1-overlap) tokens per step. A document's final chunk may be
// shorter than the window; chunks never span documents.
type Chunker struct {
	tok     Tokenizer
	window  int
	overlap float64
}

func New(tok Tokenizer, window int, overlap float64) *Chunker {
	if window <= 0 {
		window = 512
	}
	if overlap < 0 || overlap >= 1 {
		overlap = 0.15
	}
	return &Chunker{tok: tok, window: window, overlap: overlap}
}

// OverlapTokens is the number of tokens shared by consecutive chunks.
func (c *Chunker) OverlapTokens() int {
	return c.window - c.step()
}

func (c *Chunker) step() int {
	step := c.window - int(float64(c.window)*c.overlap+0.5)
	if step < 1 {
		step = 1
	}
	return step
}

// Split chunks a document's ordered pages. Scanned pages contribute no text
// but keep their position so page attribution stays correct.
func (c *Chunker) Split(docID string, pages []extract.Page) []Chunk {
	var sb strings.Builder
	pageStarts := make([]int, len(pages))
	for i, p := range pages {
		if i > 0 {
			sb.WriteString(pageBreak)
		}
		pageStarts[i] = sb.Len()
		sb.WriteString(p.Text)
	}
	text := sb.String()

	spans := c.tok.Spans(text)
	if len(spans) == 0 {
		return nil
	}

	step := c.step()
	var chunks []Chunk
	for i, ord := 0, 0; i < len(spans); i, ord = i+step, ord+1 {
		j := i + c.window
		last := false
		if j >= len(spans) {
			j = len(spans)
			last = true
		}
		start, end := spans[i].Start, spans[j-1].End
		if len(chunks) > 0 && end <= chunks[len(chunks)-1].End {
			// The remaining tokens are pure overlap; a chunk here would add
			// no new text.
			break
		}
		chunks = append(chunks, Chunk{
			ID:      fmt.Sprintf("%s#%03d", docID, ord),
			DocID:   docID,
			Ordinal: ord,
			Page:    pageAt(pages, pageStarts, start),
			Start:   start,
			End:     end,
			Tokens:  j - i,
			Text:    text[start:end],
		})
		if last {
			break
		}
	}
	return chunks
}

// pageAt maps a byte offset in the concatenated text back to its 1-based page.
func pageAt(pages []extract.Page, pageStarts []int, off int) int {
	page := 1
	for i, start := range pageStarts {
		if off >= start {
			page = pages[i].Number
		}
	}
	return page
}
