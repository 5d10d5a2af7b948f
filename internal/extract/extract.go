// Package extract turns an uploaded PDF byte stream into ordered page text.
//
// Extraction is a pure function of the input bytes: the extractor never
// mutates shared state, so one instance is safe for concurrent use across
// sessions.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrUnreadablePDF is returned when the byte stream is not a valid PDF
	// container.
	ErrUnreadablePDF = errors.New("unreadable pdf")

	// ErrPageLimitExceeded is returned when the document's page count is over
	// the configured ceiling.
	ErrPageLimitExceeded = errors.New("page limit exceeded")

	// ErrNoTextLayer is returned when every page of the document is scanned,
	// i.e. carries no extractable text. Callers must not index such a
	// document as empty.
	ErrNoTextLayer = errors.New("no extractable text layer")
)

// Page is one page of extracted text. Scanned marks pages whose text layer is
// missing or below the character-density floor.
type Page struct {
	Number  int
	Text    string
	Scanned bool
}

// Extractor reads PDF documents with a page-count ceiling and a per-page
// character floor for scanned-page detection.
type Extractor struct {
	maxPages     int
	minPageChars int
}

// New returns an Extractor. maxPages <= 0 means 500; minPageChars <= 0 means 16.
func New(maxPages, minPageChars int) *Extractor {
	if maxPages <= 0 {
		maxPages = 500
	}
	if minPageChars <= 0 {
		minPageChars = 16
	}
	return &Extractor{maxPages: maxPages, minPageChars: minPageChars}
}

// Extract parses the PDF and returns its pages in order. It fails with
// ErrUnreadablePDF for a broken container, ErrPageLimitExceeded when the page
// count is over the ceiling and ErrNoTextLayer when every page is scanned.
func (e *Extractor) Extract(ctx context.Context, data []byte) ([]Page, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdf, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	if pdf.PageCount > e.maxPages {
		return nil, fmt.Errorf("%w: %d pages, limit %d", ErrPageLimitExceeded, pdf.PageCount, e.maxPages)
	}

	pages := make([]Page, 0, pdf.PageCount)
	textless := 0
	for nr := 1; nr <= pdf.PageCount; nr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := e.pageText(pdf, nr)
		p := Page{Number: nr, Text: text}
		if len(strings.TrimSpace(text)) < e.minPageChars {
			p.Scanned = true
			textless++
		}
		pages = append(pages, p)
	}
	if len(pages) > 0 && textless == len(pages) {
		return pages, fmt.Errorf("%w: all %d pages scanned", ErrNoTextLayer, len(pages))
	}
	return pages, nil
}

func (e *Extractor) pageText(pdf *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdf, pageNr)
	if err != nil || r == nil {
		return ""
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return decodeContentText(content)
}
