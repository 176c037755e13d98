// Package report summarizes extracted documents and renders them as
// workbooks, CSV, and HTML.
package report

import (
	"fmt"
	"strings"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/shopspring/decimal"
)

const (
	failedPrefix = "FAILED: "
	noRecords    = "No parseable records found"
)

// FileSummary is the per-file line of an extraction run.
type FileSummary struct {
	Filename      string          `json:"filename"`
	Pages         int             `json:"pages"`
	UniquePOs     int             `json:"unique_pos"`
	LineItems     int             `json:"line_items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	Anomalies     string          `json:"anomalies"`
}

// Failed reports whether the file could not be extracted.
func (s FileSummary) Failed() bool {
	return strings.HasPrefix(s.Anomalies, failedPrefix)
}

// GrandTotals aggregates a run over every file.
type GrandTotals struct {
	Files         int             `json:"files"`
	Pages         int             `json:"pages"`
	UniquePOs     int             `json:"unique_pos"`
	LineItems     int             `json:"line_items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
}

// Summarize builds the summary line of an extracted document.
func Summarize(doc *ledger.Document) FileSummary {
	s := FileSummary{Filename: doc.Source, Pages: doc.TotalPages}
	if len(doc.Records) == 0 {
		s.Anomalies = noRecords
		return s
	}

	s.UniquePOs = uniquePOs(doc.Records)
	s.LineItems = len(doc.Records)
	s.TotalAmount, s.TotalInvoiced = sums(doc.Records)

	var parts []string
	if truncated := doc.TruncatedRecords(); len(truncated) > 0 {
		lines := make([]string, len(truncated))
		for i, r := range truncated {
			lines[i] = fmt.Sprintf("PO %s line %s truncated", r.PONumber, r.LineItem)
		}
		parts = append(parts, strings.Join(lines, "; "))
	}
	if doc.WasSplit {
		parts = append(parts, SplitInfo(doc))
	}
	s.Anomalies = strings.Join(parts, "; ")
	return s
}

// SplitInfo describes how a split document was windowed.
func SplitInfo(doc *ledger.Document) string {
	if !doc.WasSplit {
		return ""
	}
	return fmt.Sprintf("Split into %d chunks (%d pages)", doc.ChunkCount, doc.TotalPages)
}

// Failed builds the summary line of a file whose extraction failed.
func Failed(filename string, err error) FileSummary {
	return FileSummary{Filename: filename, Anomalies: failedPrefix + err.Error()}
}

// Totals aggregates per-file summaries and the records of every file.
func Totals(files []FileSummary, records []ledger.Record) GrandTotals {
	t := GrandTotals{
		Files:     len(files),
		UniquePOs: uniquePOs(records),
		LineItems: len(records),
	}
	for _, f := range files {
		t.Pages += f.Pages
	}
	t.TotalAmount, t.TotalInvoiced = sums(records)
	return t
}

// uniquePOs counts distinct PO numbers. Records assembled before any header
// share the empty PO number, which counts once.
func uniquePOs(records []ledger.Record) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.PONumber] = struct{}{}
	}
	return len(seen)
}

// sums totals the PO line amounts and the known still-to-be-invoiced amounts.
func sums(records []ledger.Record) (amount, invoiced decimal.Decimal) {
	for _, r := range records {
		amount = amount.Add(r.POLineAmount)
		if !r.StillToInvoice.Truncated {
			invoiced = invoiced.Add(r.StillToInvoice.Value)
		}
	}
	return amount, invoiced
}
