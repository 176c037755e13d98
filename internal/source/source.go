// Package source splits uploaded documents into ordered page windows and
// pairs each kind of document with the engine that reads it.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/poledger/internal/chunker"
	"github.com/dgallion1/poledger/internal/ocr"
)

// Part is one page window of a document, ready for recognition.
type Part struct {
	Chunk chunker.Chunk
	Data  []byte
}

// Splitter cuts a document into windows of at most maxChunkSize pages,
// in page order.
type Splitter interface {
	Split(ctx context.Context, data []byte, maxChunkSize int) ([]Part, error)
}

// Source is how one file type is read.
type Source struct {
	Kind     string
	Splitter Splitter
	Engine   ocr.Engine
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
}

// ForFile returns the source for a filename. PDF windows are read by
// pdfEngine; text files are already recognized, one page per form feed.
func ForFile(filename string, pdfEngine ocr.Engine) (*Source, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		if pdfEngine == nil {
			return nil, fmt.Errorf("no recognition engine for %s", ext)
		}
		return &Source{Kind: "pdf", Splitter: &PDFSplitter{}, Engine: pdfEngine}, nil
	case ".txt":
		return &Source{Kind: "text", Splitter: TextSplitter{}, Engine: ocr.PlainText{}}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
