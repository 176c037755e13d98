package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dgallion1/poledger/internal/chunker"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFSplitter cuts PDFs into page-range documents with pdfcpu.
type PDFSplitter struct{}

// PageCount returns the number of pages in a PDF.
func (s *PDFSplitter) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), conf())
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}

func (s *PDFSplitter) Split(ctx context.Context, data []byte, maxChunkSize int) ([]Part, error) {
	total, err := s.PageCount(data)
	if err != nil {
		return nil, err
	}

	chunks := chunker.Plan(total, maxChunkSize)
	if len(chunks) == 1 {
		return []Part{{Chunk: chunks[0], Data: data}}, nil
	}

	parts := make([]Part, 0, len(chunks))
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := api.Trim(bytes.NewReader(data), &buf, []string{c.Range()}, conf()); err != nil {
			return nil, fmt.Errorf("extract pages %s: %w", c.Range(), err)
		}
		parts = append(parts, Part{Chunk: c, Data: buf.Bytes()})
	}
	return parts, nil
}

func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	// Scanned ledgers often carry minor xref damage.
	c.ValidationMode = model.ValidationRelaxed
	return c
}
