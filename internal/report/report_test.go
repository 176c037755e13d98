package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rec(source, po, item, amount string, still ledger.Figure) ledger.Record {
	pct := ledger.Known(d("30"))
	if still.Truncated {
		pct = ledger.TruncatedFigure
	}
	return ledger.Record{
		SourceFile: source, Page: 1, PONumber: po, POType: "FO", VendorID: "001234",
		VendorName: "ACME | CORP", BuyerCode: "BC1", PODate: "01/15/2024",
		LineItem: item, Description: "Widget assembly", AccountCode: "MAT 1000",
		POLineAmount: d(amount), StillToInvoice: still, InvoicedPercent: pct,
	}
}

func sampleDocs() []*ledger.Document {
	return []*ledger.Document{
		{
			Source: "north/ledger_a.pdf",
			Records: []ledger.Record{
				rec("north/ledger_a.pdf", "4500000001", "00010", "1250.00", ledger.Known(d("375.00"))),
				rec("north/ledger_a.pdf", "4500000001", "00020", "100.00", ledger.Known(d("0"))),
				rec("north/ledger_a.pdf", "4500000002", "00010", "50.25", ledger.TruncatedFigure),
			},
			TotalPages: 23, ChunkCount: 3, WasSplit: true,
		},
		{
			Source: "ledger_b.pdf",
			Records: []ledger.Record{
				rec("ledger_b.pdf", "4500000002", "00030", "10.00", ledger.Known(d("10.00"))),
			},
			TotalPages: 2, ChunkCount: 1,
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleDocs()[0])

	assert.Equal(t, "north/ledger_a.pdf", s.Filename)
	assert.Equal(t, 23, s.Pages)
	assert.Equal(t, 2, s.UniquePOs)
	assert.Equal(t, 3, s.LineItems)
	assert.Equal(t, "1400.25", s.TotalAmount.StringFixed(2))
	assert.Equal(t, "375.00", s.TotalInvoiced.StringFixed(2), "truncated figures are excluded")
	assert.Equal(t, "PO 4500000002 line 00010 truncated; Split into 3 chunks (23 pages)", s.Anomalies)
	assert.False(t, s.Failed())
}

func TestSummarize_HeaderlessRecordsCountAsOnePO(t *testing.T) {
	doc := &ledger.Document{
		Source: "orphan.pdf",
		Records: []ledger.Record{
			rec("orphan.pdf", "", "00010", "1.00", ledger.Known(d("0"))),
			rec("orphan.pdf", "", "00020", "2.00", ledger.Known(d("0"))),
			rec("orphan.pdf", "4500000001", "00010", "3.00", ledger.Known(d("0"))),
		},
		TotalPages: 1, ChunkCount: 1,
	}

	s := Summarize(doc)
	assert.Equal(t, 2, s.UniquePOs)
	assert.Equal(t, 2, Totals([]FileSummary{s}, doc.Records).UniquePOs)
}

func TestSummarize_NoRecords(t *testing.T) {
	s := Summarize(&ledger.Document{Source: "blank.pdf", TotalPages: 4, ChunkCount: 1})
	assert.Equal(t, "No parseable records found", s.Anomalies)
	assert.Equal(t, 4, s.Pages)
	assert.True(t, s.TotalAmount.IsZero())
}

func TestSummarize_Clean(t *testing.T) {
	s := Summarize(sampleDocs()[1])
	assert.Empty(t, s.Anomalies)
}

func TestFailed(t *testing.T) {
	s := Failed("bad.pdf", errors.New("open pdf: unexpected EOF"))
	assert.Equal(t, "FAILED: open pdf: unexpected EOF", s.Anomalies)
	assert.True(t, s.Failed())
	assert.Zero(t, s.Pages)
}

func TestTotals(t *testing.T) {
	docs := sampleDocs()
	files := []FileSummary{Summarize(docs[0]), Summarize(docs[1]), Failed("bad.pdf", errors.New("x"))}
	var all []ledger.Record
	for _, doc := range docs {
		all = append(all, doc.Records...)
	}

	tot := Totals(files, all)
	assert.Equal(t, 3, tot.Files)
	assert.Equal(t, 25, tot.Pages)
	assert.Equal(t, 2, tot.UniquePOs)
	assert.Equal(t, 4, tot.LineItems)
	assert.Equal(t, "1410.25", tot.TotalAmount.StringFixed(2))
	assert.Equal(t, "385.00", tot.TotalInvoiced.StringFixed(2))
}

func TestTabNames(t *testing.T) {
	files := []FileSummary{
		{Filename: "dir/Ledger: Q1 [draft].pdf"},
		{Filename: "other/Ledger: Q1 [draft].pdf"},
		{Filename: "summary.pdf"},
		{Filename: strings.Repeat("x", 40) + ".pdf"},
		{Filename: strings.Repeat("x", 40) + ".txt"},
	}
	names := TabNames(files)

	assert.Equal(t, "Ledger Q1 draft", names[0])
	assert.Equal(t, "Ledger Q1 draft_1", names[1])
	assert.Equal(t, "summary_1", names[2], "sheet names are case-insensitive")
	assert.Equal(t, strings.Repeat("x", 31), names[3])
	assert.Equal(t, strings.Repeat("x", 29)+"_1", names[4])
	for _, n := range names {
		assert.LessOrEqual(t, len(n), 31)
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleDocs()[0]))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetFull, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetFull)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Headers[1:], rows[0])
	assert.Equal(t, "4500000001", rows[1][1])
	assert.Equal(t, ledger.TruncatedText, rows[3][12])

	title, err := f.GetCellValue(SheetSummary, "A1")
	require.NoError(t, err)
	assert.Equal(t, "EXTRACTION SUMMARY - north/ledger_a.pdf", title)

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	var labels []string
	for _, r := range summary {
		if len(r) > 0 {
			labels = append(labels, r[0])
		}
	}
	assert.Contains(t, labels, "PO 4500000002 truncated")
	assert.Contains(t, labels, "Split into 3 chunks (23 pages)")
}

func TestWriteConsolidated(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC) }
	defer func() { now = time.Now }()

	docs := sampleDocs()
	files := []FileSummary{Summarize(docs[0]), Summarize(docs[1]), Failed("bad.pdf", errors.New("no pages"))}

	var buf bytes.Buffer
	require.NoError(t, WriteConsolidated(&buf, []*ledger.Document{docs[0], docs[1], nil}, files))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetAll, SheetSummary, "ledger_a", "ledger_b", "bad"}, f.GetSheetList())

	failed, err := f.GetRows("bad")
	require.NoError(t, err)
	assert.Len(t, failed, 1, "header only")

	all, err := f.GetRows(SheetAll)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, Headers, all[0])

	perFile, err := f.GetRows("ledger_a")
	require.NoError(t, err)
	assert.Len(t, perFile, 4)

	generated, err := f.GetCellValue(SheetSummary, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Generated: 2024-02-01 10:30:00", generated)

	files5, err := f.GetCellValue(SheetSummary, "B5")
	require.NoError(t, err)
	assert.Equal(t, "3", files5)
}

func TestWriteConsolidated_SameFilenameKeepsTabsApart(t *testing.T) {
	first := &ledger.Document{
		Source:     "ledger.pdf",
		Records:    []ledger.Record{rec("ledger.pdf", "4500000001", "00010", "10.00", ledger.Known(d("1.00")))},
		TotalPages: 1, ChunkCount: 1,
	}
	second := &ledger.Document{
		Source:     "ledger.pdf",
		Records:    []ledger.Record{rec("ledger.pdf", "4500000002", "00010", "20.00", ledger.Known(d("2.00")))},
		TotalPages: 1, ChunkCount: 1,
	}
	docs := []*ledger.Document{first, second, nil}
	files := []FileSummary{Summarize(first), Summarize(second), Failed("ledger.pdf", errors.New("corrupt"))}

	var buf bytes.Buffer
	require.NoError(t, WriteConsolidated(&buf, docs, files))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{SheetAll, SheetSummary, "ledger", "ledger_1", "ledger_2"}, f.GetSheetList())

	all, err := f.GetRows(SheetAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	for sheet, want := range map[string]string{"ledger": "4500000001", "ledger_1": "4500000002"} {
		rows, err := f.GetRows(sheet)
		require.NoError(t, err)
		require.Len(t, rows, 2, sheet)
		assert.Contains(t, rows[1], want, sheet)
	}

	failed, err := f.GetRows("ledger_2")
	require.NoError(t, err)
	assert.Len(t, failed, 1, "failed file shows no other document's rows")
}

func TestWriteConsolidated_RejectsMisalignedInput(t *testing.T) {
	docs := sampleDocs()
	err := WriteConsolidated(&bytes.Buffer{}, docs, []FileSummary{Summarize(docs[0])})
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleDocs()[0].Records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, []string{"1250.00", "375.00", "30.00"}, rows[1][11:])
	assert.Equal(t, "ACME | CORP", rows[1][5])
	assert.Equal(t, ledger.TruncatedText, rows[3][13])
}

func TestRenderHTML(t *testing.T) {
	docs := sampleDocs()
	files := []FileSummary{Summarize(docs[0]), Summarize(docs[1])}

	out, err := RenderHTML("Run <1>", files, docs)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>ledger_b.pdf</td>")
	assert.Contains(t, html, "ACME | CORP")
	assert.Contains(t, html, ledger.TruncatedText)
	assert.NotContains(t, html, "<1>")
}
