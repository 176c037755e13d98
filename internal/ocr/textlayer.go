package ocr

import (
	"bytes"
	"context"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// TextLayer reads the embedded text of a born-digital PDF window. Pages
// without a text layer come back empty.
type TextLayer struct{}

func (*TextLayer) Name() string { return EngineTextLayer }

func (*TextLayer) Recognize(ctx context.Context, data []byte) (pages []string, err error) {
	// The reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read pdf text layer: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, joinRows(rows))
	}
	return pages, nil
}

// joinRows rebuilds one line per text row so the ledger grammar sees the
// same line shape OCR produces.
func joinRows(rows pdflib.Rows) string {
	var buf bytes.Buffer
	for _, row := range rows {
		for i, w := range row.Content {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(w.S)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}
