package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderMarkdown writes a run report: grand totals, the per-file breakdown,
// and the records of docs. Nil documents are skipped.
func RenderMarkdown(title string, files []FileSummary, docs []*ledger.Document) []byte {
	var all []ledger.Record
	for _, d := range docs {
		if d != nil {
			all = append(all, d.Records...)
		}
	}
	totals := Totals(files, all)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", cell(title))

	b.WriteString("## Grand totals\n\n| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Files | %d |\n", totals.Files)
	fmt.Fprintf(&b, "| Pages | %d |\n", totals.Pages)
	fmt.Fprintf(&b, "| Unique PO numbers | %d |\n", totals.UniquePOs)
	fmt.Fprintf(&b, "| Line items | %d |\n", totals.LineItems)
	fmt.Fprintf(&b, "| PO line amount (USD) | %s |\n", totals.TotalAmount.StringFixed(2))
	fmt.Fprintf(&b, "| Still to be invoiced (USD) | %s |\n\n", totals.TotalInvoiced.StringFixed(2))

	b.WriteString("## Files\n\n")
	b.WriteString("| File | Pages | POs | Line items | PO line total | Invoiced total | Anomalies |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---|\n")
	for _, fs := range files {
		anomalies := fs.Anomalies
		if anomalies == "" {
			anomalies = "None"
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %s | %s | %s |\n",
			cell(fs.Filename), fs.Pages, fs.UniquePOs, fs.LineItems,
			fs.TotalAmount.StringFixed(2), fs.TotalInvoiced.StringFixed(2), cell(anomalies))
	}

	if len(all) > 0 {
		b.WriteString("\n## Records\n\n|")
		for _, h := range Headers {
			b.WriteString(" " + h + " |")
		}
		b.WriteString("\n|" + strings.Repeat("---|", len(Headers)) + "\n")
		for _, r := range all {
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				cell(r.SourceFile), r.Page, cell(r.PONumber), cell(r.POType), cell(r.VendorID),
				cell(r.VendorName), cell(r.BuyerCode), cell(r.PODate), cell(r.LineItem),
				cell(r.Description), cell(r.AccountCode), r.POLineAmount.StringFixed(2),
				r.StillToInvoice, r.InvoicedPercent)
		}
	}
	return []byte(b.String())
}

// RenderHTML converts the markdown report to an HTML fragment.
func RenderHTML(title string, files []FileSummary, docs []*ledger.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert(RenderMarkdown(title, files, docs), &buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
