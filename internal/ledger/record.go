// Package ledger turns OCR text of PO ledger pages into normalized records.
package ledger

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TruncatedText is how an invoiced figure reads when the document ended
// before the record's "Still to be invoiced" line.
const TruncatedText = "N/A (PDF truncated)"

// Figure is an invoiced amount or percent. A truncated figure carries no value.
type Figure struct {
	Value     decimal.Decimal
	Truncated bool
}

// Known wraps a parsed value.
func Known(v decimal.Decimal) Figure {
	return Figure{Value: v}
}

// TruncatedFigure is the sentinel stored on records closed at end of document.
var TruncatedFigure = Figure{Truncated: true}

func (f Figure) String() string {
	if f.Truncated {
		return TruncatedText
	}
	return f.Value.StringFixed(2)
}

func (f Figure) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// Equal reports whether two figures hold the same value or are both truncated.
func (f Figure) Equal(o Figure) bool {
	if f.Truncated || o.Truncated {
		return f.Truncated == o.Truncated
	}
	return f.Value.Equal(o.Value)
}

// POContext is the most recently seen PO header.
type POContext struct {
	Number     string `json:"po_number"`
	Type       string `json:"po_type"`
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	BuyerCode  string `json:"buyer_code"`
	Date       string `json:"po_date"`
}

// LineItemContext is the most recently seen line item under the current PO.
type LineItemContext struct {
	Number      string `json:"line_item"`
	Description string `json:"description"`
}

// Record is one finished ledger row.
type Record struct {
	SourceFile      string          `json:"source_file"`
	Page            int             `json:"page"`
	PONumber        string          `json:"po_number"`
	POType          string          `json:"po_type"`
	VendorID        string          `json:"vendor_id"`
	VendorName      string          `json:"vendor_name"`
	BuyerCode       string          `json:"buyer_code"`
	PODate          string          `json:"po_date"`
	LineItem        string          `json:"line_item"`
	Description     string          `json:"description"`
	AccountCode     string          `json:"account_code"`
	POLineAmount    decimal.Decimal `json:"po_line_amount"`
	StillToInvoice  Figure          `json:"still_to_be_invoiced"`
	InvoicedPercent Figure          `json:"invoiced_percent"`
}

// Truncated reports whether the record was closed without its invoiced line.
func (r Record) Truncated() bool {
	return r.StillToInvoice.Truncated || r.InvoicedPercent.Truncated
}

// Document is the ordered output for one source file.
type Document struct {
	Source     string   `json:"source_file"`
	Records    []Record `json:"records"`
	TotalPages int      `json:"total_pages"`
	ChunkCount int      `json:"chunk_count"`
	WasSplit   bool     `json:"was_split"`

	// Discarded counts pending records replaced by a later account line.
	Discarded int `json:"discarded_pending"`
}

// TruncatedRecords returns the records closed at end of document.
func (d *Document) TruncatedRecords() []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Truncated() {
			out = append(out, r)
		}
	}
	return out
}
