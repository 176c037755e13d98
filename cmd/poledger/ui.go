package main

import (
	"fmt"
	"io"

	"github.com/dgallion1/poledger/internal/report"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
)

// printSummary writes one line per file and the grand totals.
func printSummary(w io.Writer, files []report.FileSummary, totals report.GrandTotals) {
	for _, fs := range files {
		switch {
		case fs.Failed():
			failColor.Fprintf(w, "✗ %s: %s\n", fs.Filename, fs.Anomalies)
		case fs.Anomalies != "":
			warnColor.Fprintf(w, "⚠ %s: %d records, %d pages (%s)\n", fs.Filename, fs.LineItems, fs.Pages, fs.Anomalies)
		default:
			okColor.Fprintf(w, "✓ %s: %d records, %d pages\n", fs.Filename, fs.LineItems, fs.Pages)
		}
	}
	fmt.Fprintf(w, "\n%d files, %d pages, %d unique POs, %d line items\n",
		totals.Files, totals.Pages, totals.UniquePOs, totals.LineItems)
	fmt.Fprintf(w, "PO line amount: %s USD, still to be invoiced: %s USD\n",
		totals.TotalAmount.StringFixed(2), totals.TotalInvoiced.StringFixed(2))
}
