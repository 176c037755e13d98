package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SheetFull    = "Full Extraction"
	SheetSummary = "Summary"
	SheetAll     = "All Data"
)

// Headers are the data sheet columns of the consolidated workbook. Per-file
// sheets omit the first column.
var Headers = []string{
	"Source File", "Page", "PO Number", "PO Type", "Vendor ID", "Vendor Name",
	"Buyer Code", "PO Date", "Line Item", "Description",
	"Account Code", "PO Line Amount (USD)",
	"Still to be Invoiced (USD)", "Invoiced %",
}

var (
	widthsAll    = []float64{30, 6, 14, 8, 10, 38, 10, 12, 10, 35, 14, 20, 24, 12}
	summaryWidth = []float64{40, 8, 10, 12, 22, 22, 40}

	centerCols = map[string]bool{
		"Page": true, "PO Number": true, "PO Type": true, "Vendor ID": true,
		"Line Item": true, "Buyer Code": true, "PO Date": true,
	}
	moneyCols = map[string]bool{
		"PO Line Amount (USD)": true, "Still to be Invoiced (USD)": true,
	}
)

// now stamps generated workbooks.
var now = time.Now

const (
	headerBlue = "2F5496"
	altFill    = "F2F7FB"
	gridColor  = "D9D9D9"
	moneyFmt   = "#,##0.00"
	dollarFmt  = "$#,##0.00"
	pctFmt     = "0.00"
	maxTabName = 31
)

// cellKind selects a data cell style.
type cellKind int

const (
	cellText cellKind = iota
	cellCenter
	cellMoney
	cellPercent
)

type styles struct {
	header int
	data   map[cellKind][2]int // plain, alternate row
	title  int
	bold   int
	normal int
	dollar int
	red    int
	blue   int
	table  int // bordered data cell
	tableD int // bordered dollar cell
}

func newStyles(f *excelize.File) (*styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: gridColor, Style: 1},
		{Type: "right", Color: gridColor, Style: 1},
		{Type: "top", Color: gridColor, Style: 1},
		{Type: "bottom", Color: gridColor, Style: 1},
	}
	dataFont := &excelize.Font{Family: "Arial", Size: 10}
	money, dollar, pct := moneyFmt, dollarFmt, pctFmt

	s := &styles{data: make(map[cellKind][2]int)}
	var err error
	style := func(st *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f.NewStyle(st)
		return id
	}

	s.header = style(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerBlue}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	})

	for _, kind := range []cellKind{cellText, cellCenter, cellMoney, cellPercent} {
		var pair [2]int
		for alt := range 2 {
			st := &excelize.Style{Font: dataFont, Border: border}
			if alt == 1 {
				st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{altFill}}
			}
			switch kind {
			case cellCenter:
				st.Alignment = &excelize.Alignment{Horizontal: "center"}
			case cellMoney:
				st.Alignment = &excelize.Alignment{Horizontal: "right"}
				st.CustomNumFmt = &money
			case cellPercent:
				st.Alignment = &excelize.Alignment{Horizontal: "right"}
				st.CustomNumFmt = &pct
			}
			pair[alt] = style(st)
		}
		s.data[kind] = pair
	}

	s.title = style(&excelize.Style{Font: &excelize.Font{Family: "Arial", Bold: true, Size: 14, Color: headerBlue}})
	s.bold = style(&excelize.Style{Font: &excelize.Font{Family: "Arial", Bold: true, Size: 11}})
	s.normal = style(&excelize.Style{Font: &excelize.Font{Family: "Arial", Size: 11}})
	s.dollar = style(&excelize.Style{Font: &excelize.Font{Family: "Arial", Size: 11}, CustomNumFmt: &dollar})
	s.red = style(&excelize.Style{Font: &excelize.Font{Family: "Arial", Bold: true, Size: 13, Color: "C00000"}})
	s.blue = style(&excelize.Style{Font: &excelize.Font{Family: "Arial", Bold: true, Size: 13, Color: headerBlue}})
	s.table = style(&excelize.Style{Font: dataFont, Border: border})
	s.tableD = style(&excelize.Style{
		Font: dataFont, Border: border, CustomNumFmt: &dollar,
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return nil, fmt.Errorf("create styles: %w", err)
	}
	return s, nil
}

// WriteWorkbook writes the workbook of a single document: its records and
// a summary with its anomalies.
func WriteWorkbook(w io.Writer, doc *ledger.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", SheetFull); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeDataSheet(f, st, SheetFull, doc.Records, false); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	if err := writeDocumentSummary(f, st, doc); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteConsolidated writes the workbook of a whole run: every record, the
// run summary, and one sheet per file in files order. docs is aligned with
// files; a failed file has a nil document and gets an empty sheet.
func WriteConsolidated(w io.Writer, docs []*ledger.Document, files []FileSummary) error {
	if len(docs) != len(files) {
		return fmt.Errorf("consolidated workbook: %d documents for %d files", len(docs), len(files))
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	var all []ledger.Record
	for _, d := range docs {
		if d != nil {
			all = append(all, d.Records...)
		}
	}

	if err := f.SetSheetName("Sheet1", SheetAll); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeDataSheet(f, st, SheetAll, all, true); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	if err := writeRunSummary(f, st, files, Totals(files, all)); err != nil {
		return err
	}

	for i, name := range TabNames(files) {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %q: %w", name, err)
		}
		var records []ledger.Record
		if docs[i] != nil {
			records = docs[i].Records
		}
		if err := writeDataSheet(f, st, name, records, false); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// TabNames returns one sheet name per file: the base name without its
// extension, stripped of characters sheet names cannot hold, cut to 31
// characters, and made unique with a numeric suffix.
func TabNames(files []FileSummary) []string {
	seen := map[string]bool{
		strings.ToLower(SheetAll):     true,
		strings.ToLower(SheetSummary): true,
	}
	names := make([]string, len(files))
	for i, fs := range files {
		base := strings.TrimSuffix(filepath.Base(fs.Filename), filepath.Ext(fs.Filename))
		base = strings.Map(func(r rune) rune {
			if strings.ContainsRune(`\/*?[]:`, r) {
				return -1
			}
			return r
		}, base)
		if base == "" {
			base = "Sheet"
		}
		base = truncate(base, maxTabName)

		name := base
		for n := 1; seen[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf("_%d", n)
			name = truncate(base, maxTabName-len(suffix)) + suffix
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func writeDataSheet(f *excelize.File, st *styles, sheet string, records []ledger.Record, withSource bool) error {
	headers, widths := Headers, widthsAll
	if !withSource {
		headers, widths = Headers[1:], widthsAll[1:]
	}

	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for i, r := range records {
		rowNum := i + 2
		values := recordValues(r)
		if !withSource {
			values = values[1:]
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, rowNum, err)
		}

		alt := 0
		if rowNum%2 == 0 {
			alt = 1
		}
		for c, h := range headers {
			ref, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			if err := f.SetCellStyle(sheet, ref, ref, st.data[kindOf(h, values[c])][alt]); err != nil {
				return fmt.Errorf("style %s: %w", ref, err)
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("set %s width: %w", col, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	ref := fmt.Sprintf("A1:%s%d", lastCol, len(records)+1)
	if err := f.AutoFilter(sheet, ref, []excelize.AutoFilterOptions{}); err != nil {
		return fmt.Errorf("filter %s: %w", sheet, err)
	}
	return nil
}

// recordValues returns the consolidated row of r. Numbers are written as
// numbers; truncated figures as the sentinel text.
func recordValues(r ledger.Record) []any {
	return []any{
		r.SourceFile, r.Page, r.PONumber, r.POType, r.VendorID, r.VendorName,
		r.BuyerCode, r.PODate, r.LineItem, r.Description, r.AccountCode,
		r.POLineAmount.InexactFloat64(),
		figureValue(r.StillToInvoice),
		figureValue(r.InvoicedPercent),
	}
}

func figureValue(f ledger.Figure) any {
	if f.Truncated {
		return ledger.TruncatedText
	}
	return f.Value.InexactFloat64()
}

func kindOf(header string, v any) cellKind {
	_, numeric := v.(float64)
	switch {
	case moneyCols[header] && numeric:
		return cellMoney
	case header == "Invoiced %" && numeric:
		return cellPercent
	case centerCols[header]:
		return cellCenter
	default:
		return cellText
	}
}

type labelValue struct {
	label string
	value any
}

func writeDocumentSummary(f *excelize.File, st *styles, doc *ledger.Document) error {
	sum := Summarize(doc)
	sheet := SheetSummary
	cw := cellWriter{f: f, sheet: sheet}

	cw.set(1, 1, "EXTRACTION SUMMARY - "+doc.Source, st.title)

	rows := []labelValue{
		{"Pages Processed", doc.TotalPages},
		{"Total PO Numbers", sum.UniquePOs},
		{"Total Line Items", len(doc.Records)},
		{"Total PO Line Amount (USD)", sum.TotalAmount.InexactFloat64()},
		{"Total Still to be Invoiced (USD)", sum.TotalInvoiced.InexactFloat64()},
		{"", ""},
		{"ANOMALIES", ""},
	}
	truncated := doc.TruncatedRecords()
	for _, r := range truncated {
		rows = append(rows, labelValue{fmt.Sprintf("PO %s truncated", r.PONumber), "N/A"})
	}
	if doc.WasSplit {
		rows = append(rows, labelValue{SplitInfo(doc), ""})
	}
	if len(truncated) == 0 && !doc.WasSplit {
		rows = append(rows, labelValue{"None found", ""})
	}

	for i, lv := range rows {
		row := i + 3
		cw.set(1, row, lv.label, st.bold)
		style := st.normal
		if _, ok := lv.value.(float64); ok {
			style = st.dollar
		}
		cw.set(2, row, lv.value, style)
	}
	cw.width("A", 60)
	cw.width("B", 30)
	return cw.err
}

func writeRunSummary(f *excelize.File, st *styles, files []FileSummary, totals GrandTotals) error {
	cw := cellWriter{f: f, sheet: SheetSummary}

	cw.set(1, 1, "CONSOLIDATED EXTRACTION SUMMARY", st.title)
	if cw.err == nil {
		cw.err = f.MergeCell(SheetSummary, "A1", "F1")
	}
	cw.set(1, 2, "Generated: "+now().Format("2006-01-02 15:04:05"), st.normal)

	row := 4
	cw.set(1, row, "GRAND TOTALS", st.red)
	row++
	for _, lv := range []labelValue{
		{"Total PDF Files Processed", totals.Files},
		{"Total Pages Processed", totals.Pages},
		{"Total Unique PO Numbers", totals.UniquePOs},
		{"Total Line Items Extracted", totals.LineItems},
		{"Total PO Line Amount (USD)", totals.TotalAmount.InexactFloat64()},
		{"Total Still to be Invoiced (USD)", totals.TotalInvoiced.InexactFloat64()},
	} {
		cw.set(1, row, lv.label, st.bold)
		style := st.normal
		if _, ok := lv.value.(float64); ok {
			style = st.dollar
		}
		cw.set(2, row, lv.value, style)
		row++
	}

	row += 2
	cw.set(1, row, "PER-FILE BREAKDOWN", st.blue)
	row++
	for c, h := range []string{"File Name", "Pages", "PO Count", "Line Items",
		"PO Line Total (USD)", "Invoiced Total (USD)", "Anomalies"} {
		cw.set(c+1, row, h, st.header)
	}
	row++

	for _, fs := range files {
		anomalies := fs.Anomalies
		if anomalies == "" {
			anomalies = "None"
		}
		for c, v := range []any{
			fs.Filename, fs.Pages, fs.UniquePOs, fs.LineItems,
			fs.TotalAmount.InexactFloat64(), fs.TotalInvoiced.InexactFloat64(), anomalies,
		} {
			style := st.table
			if _, ok := v.(float64); ok {
				style = st.tableD
			}
			cw.set(c+1, row, v, style)
		}
		row++
	}

	for i, w := range summaryWidth {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cw.width(col, w)
	}
	return cw.err
}

// cellWriter writes styled cells and keeps the first error.
type cellWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (cw *cellWriter) set(col, row int, v any, style int) {
	if cw.err != nil {
		return
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		cw.err = err
		return
	}
	if err := cw.f.SetCellValue(cw.sheet, ref, v); err != nil {
		cw.err = fmt.Errorf("write %s!%s: %w", cw.sheet, ref, err)
		return
	}
	if err := cw.f.SetCellStyle(cw.sheet, ref, ref, style); err != nil {
		cw.err = fmt.Errorf("style %s!%s: %w", cw.sheet, ref, err)
	}
}

func (cw *cellWriter) width(col string, w float64) {
	if cw.err != nil {
		return
	}
	if err := cw.f.SetColWidth(cw.sheet, col, col, w); err != nil {
		cw.err = fmt.Errorf("set %s width: %w", col, err)
	}
}
