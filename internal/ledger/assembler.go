package ledger

import (
	"fmt"

	"github.com/dgallion1/poledger/internal/chunker"
)

// Location identifies where a line was read.
type Location struct {
	SourceFile string
	Page       int
}

// State is the assembler's context between lines. It carries across chunk
// boundaries so a record can start in one window and close in the next.
type State struct {
	PO   POContext
	Item LineItemContext

	// Pending is the record awaiting its invoiced line, if HasPending.
	Pending    Record
	HasPending bool

	// Discarded counts pending records replaced before they closed.
	Discarded int
}

// Step folds one classified line into s. It returns the next state and the
// record the line closed, if any.
func Step(s State, line Line, at Location) (State, *Record) {
	switch line.Kind {
	case Header:
		s.PO = line.PO

	case LineItem:
		s.Item = line.Item

	case AccountLine:
		// A second account line before the invoiced line drops the first
		// pending record without emitting it.
		if s.HasPending {
			s.Discarded++
		}
		s.Pending = Record{
			SourceFile:   at.SourceFile,
			Page:         at.Page,
			PONumber:     s.PO.Number,
			POType:       s.PO.Type,
			VendorID:     s.PO.VendorID,
			VendorName:   s.PO.VendorName,
			BuyerCode:    s.PO.BuyerCode,
			PODate:       s.PO.Date,
			LineItem:     s.Item.Number,
			Description:  s.Item.Description,
			AccountCode:  line.AccountCode,
			POLineAmount: line.Amount,
		}
		s.HasPending = true

	case InvoicedLine, InvoicedZeroLine:
		if !s.HasPending {
			return s, nil
		}
		rec := s.Pending
		rec.StillToInvoice = Known(line.StillToInvoice)
		rec.InvoicedPercent = Known(line.Percent)
		s.Pending = Record{}
		s.HasPending = false
		return s, &rec
	}
	return s, nil
}

// Close ends the stream. An open pending record is emitted with both
// invoiced figures set to the truncation sentinel.
func Close(s State) (State, *Record) {
	if !s.HasPending {
		return s, nil
	}
	rec := s.Pending
	rec.StillToInvoice = TruncatedFigure
	rec.InvoicedPercent = TruncatedFigure
	s.Pending = Record{}
	s.HasPending = false
	return s, &rec
}

// Assembler drives Step over the chunks of one document in order.
type Assembler struct {
	classifier *Classifier
	source     string
	tracker    chunker.OffsetTracker
	state      State
	records    []Record
	finished   bool
}

// NewAssembler starts an empty document for source.
func NewAssembler(source string, classifier *Classifier) *Assembler {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Assembler{classifier: classifier, source: source}
}

// AddChunk consumes the recognized page texts of the next chunk. Chunks must
// arrive in plan order; pages[i] is local page i+1 of the chunk.
func (a *Assembler) AddChunk(c chunker.Chunk, pages []string) error {
	if a.finished {
		return fmt.Errorf("add chunk %q: document already finished", c.Label)
	}
	if len(pages) > c.PageCount {
		return fmt.Errorf("add chunk %q: %d page texts for %d pages", c.Label, len(pages), c.PageCount)
	}
	base, err := a.tracker.Advance(c)
	if err != nil {
		return fmt.Errorf("add chunk %q: %w", c.Label, err)
	}

	for i, text := range pages {
		at := Location{SourceFile: a.source, Page: base + i + 1}
		for _, l := range Lines(text) {
			var rec *Record
			a.state, rec = Step(a.state, a.classifier.Classify(l), at)
			if rec != nil {
				a.records = append(a.records, *rec)
			}
		}
	}
	return nil
}

// Len returns the number of records emitted so far.
func (a *Assembler) Len() int {
	return len(a.records)
}

// State returns the current fold state.
func (a *Assembler) State() State {
	return a.state
}

// Finish closes the stream and returns the document. Later calls return the
// same records.
func (a *Assembler) Finish() *Document {
	if !a.finished {
		var rec *Record
		a.state, rec = Close(a.state)
		if rec != nil {
			a.records = append(a.records, *rec)
		}
		a.finished = true
	}

	records := make([]Record, len(a.records))
	copy(records, a.records)
	return &Document{
		Source:     a.source,
		Records:    records,
		TotalPages: a.tracker.Offset(),
		ChunkCount: a.tracker.Chunks(),
		WasSplit:   a.tracker.Chunks() > 1,
		Discarded:  a.state.Discarded,
	}
}

// Assemble extracts a single-window document from its page texts. It
// panics if the assembler rejects the window, which a fresh assembler and a
// single planned chunk never do.
func Assemble(source string, classifier *Classifier, pages []string) *Document {
	a := NewAssembler(source, classifier)
	if len(pages) > 0 {
		c := chunker.Plan(len(pages), len(pages))[0]
		if err := a.AddChunk(c, pages); err != nil {
			panic("ledger: assemble " + source + ": " + err.Error())
		}
	}
	return a.Finish()
}
