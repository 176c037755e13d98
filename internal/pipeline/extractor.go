package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/poledger/internal/chunker"
	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/dgallion1/poledger/internal/source"
)

// ProgressReporter observes the extraction of one document.
type ProgressReporter interface {
	Planned(chunks []chunker.Chunk)
	ChunkDone(c chunker.Chunk, records int)
}

type noProgress struct{}

func (noProgress) Planned([]chunker.Chunk) {}
func (noProgress) ChunkDone(chunker.Chunk, int) {}

// Extractor runs split, recognition, and assembly for one document at a time.
// It is safe for concurrent use by independent documents.
type Extractor struct {
	maxChunkSize int
	classifier   *ledger.Classifier
	log          *slog.Logger
}

// NewExtractor returns an extractor windowing documents at maxChunkSize pages.
func NewExtractor(maxChunkSize int, log *slog.Logger) *Extractor {
	if maxChunkSize <= 0 {
		maxChunkSize = chunker.DefaultMaxChunkSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		maxChunkSize: maxChunkSize,
		classifier:   ledger.NewClassifier(ledger.NewPatterns()),
		log:          log,
	}
}

// MaxChunkSize returns the page window size.
func (e *Extractor) MaxChunkSize() int {
	return e.maxChunkSize
}

// Extract reads filename's records. Chunks are recognized and assembled
// strictly in page order. Any split or recognition failure fails the whole
// document; no partial records are returned.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte, src *source.Source, progress ProgressReporter) (*ledger.Document, error) {
	if progress == nil {
		progress = noProgress{}
	}
	log := e.log.With("filename", filename, "engine", src.Engine.Name())

	parts, err := src.Splitter.Split(ctx, data, e.maxChunkSize)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", filename, err)
	}
	chunks := make([]chunker.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = p.Chunk
	}
	progress.Planned(chunks)
	log.Info("planned document", "chunks", len(chunks), "pages", chunker.TotalPages(chunks))

	a := ledger.NewAssembler(filename, e.classifier)
	for _, p := range parts {
		pages, err := src.Engine.Recognize(ctx, p.Data)
		if err != nil {
			return nil, fmt.Errorf("recognize %s pages %s: %w", filename, p.Chunk.Range(), err)
		}
		before := a.Len()
		if err := a.AddChunk(p.Chunk, pages); err != nil {
			return nil, fmt.Errorf("assemble %s: %w", filename, err)
		}
		progress.ChunkDone(p.Chunk, a.Len()-before)
		log.Debug("chunk assembled", "chunk", p.Chunk.Label, "records", a.Len()-before)
	}

	doc := a.Finish()
	if doc.Discarded > 0 {
		log.Warn("account lines replaced before their invoiced line", "discarded", doc.Discarded)
	}
	for _, r := range doc.TruncatedRecords() {
		log.Warn("record truncated at end of document", "po_number", r.PONumber, "line_item", r.LineItem, "page", r.Page)
	}
	log.Info("extracted document", "records", len(doc.Records), "pages", doc.TotalPages)
	return doc, nil
}
