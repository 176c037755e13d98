package source

import (
	"bytes"
	"context"

	"github.com/dgallion1/poledger/internal/chunker"
)

// TextSplitter handles pre-recognized text, one page per form-feed section.
type TextSplitter struct{}

// Pages returns the page texts of data. A trailing form feed does not start
// a new page.
func (TextSplitter) Pages(data []byte) [][]byte {
	data = bytes.TrimSuffix(data, []byte("\f"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return bytes.Split(data, []byte("\f"))
}

func (s TextSplitter) Split(ctx context.Context, data []byte, maxChunkSize int) ([]Part, error) {
	pages := s.Pages(data)
	chunks := chunker.Plan(len(pages), maxChunkSize)

	parts := make([]Part, 0, len(chunks))
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parts = append(parts, Part{
			Chunk: c,
			Data:  bytes.Join(pages[c.StartPage:c.EndPage], []byte("\f")),
		})
	}
	return parts, nil
}
