package chunk

import (
	"fmt"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Span is a half-open byte range of one token inside the tokenized text.
type Span struct {
	Start int
	End   int
}

// Tokenizer produces a deterministic token segmentation of text. Window
// boundaries are cut on token spans, so the same input must always yield the
// same spans.
type Tokenizer interface {
	Name() string
	Spans(text string) []Span
}

// NewTokenizer returns the tokenizer selected by name: "tiktoken" (cl100k_base
// BPE) or "words".
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", "tiktoken":
		return NewTiktoken()
	case "words":
		return WordTokenizer{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}

// TiktokenTokenizer counts tokens with the cl100k_base BPE encoding. Byte
// level BPE decodes token-by-token back to the exact original bytes, which is
// what makes span reconstruction possible.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTiktoken() (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Name() string { return "tiktoken" }

func (t *TiktokenTokenizer) Spans(text string) []Span {
	ids := t.enc.Encode(text, nil, nil)
	spans := make([]Span, 0, len(ids))
	off := 0
	for _, id := range ids {
		piece := t.enc.Decode([]int{id})
		spans = append(spans, Span{Start: off, End: off + len(piece)})
		off += len(piece)
	}
	return spans
}

// WordTokenizer segments on letter/digit runs. It is fully offline and
// deterministic; tests use it so chunk boundaries never depend on a BPE
// vocabulary download.
type WordTokenizer struct{}

func (WordTokenizer) Name() string { return "words" }

func (WordTokenizer) Spans(text string) []Span {
	var spans []Span
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			spans = append(spans, Span{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}
