package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/poledger/internal/config"
	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/dgallion1/poledger/internal/ocr"
	"github.com/dgallion1/poledger/internal/pipeline"
	"github.com/dgallion1/poledger/internal/report"
	"github.com/dgallion1/poledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testKey = "test-key"

const ledgerPage = "4500000001 FO 001234 ACME CORP BC1 01/15/2024\n" +
	"00010 Widget assembly\n" +
	"1 MAT 1000 5 EA 100.00 USD\n" +
	"Still to be invoiced 3 EA 30.00 USD 30.00%"

type testEnv struct {
	srv   *Server
	orch  *pipeline.Orchestrator
	store *store.Store
}

func newEnv(t *testing.T, start bool, stats *ocr.LatencyStats) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:         testKey,
		MaxChunkSize:   10,
		WorkerCount:    1,
		MaxQueueSize:   8,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
	}

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	orch := pipeline.NewOrchestrator(cfg, pipeline.NewExtractor(cfg.MaxChunkSize, log), st, nil, log)
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	return &testEnv{
		srv:   NewServer(orch, st, ocr.PlainText{}, stats, log, cfg),
		orch:  orch,
		store: st,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(t *testing.T, id, source string) {
	t.Helper()
	doc := &ledger.Document{
		Source: source,
		Records: []ledger.Record{{
			SourceFile: source, Page: 1, PONumber: "4500000009", POType: "FO",
			VendorID: "001234", VendorName: "ACME CORP", BuyerCode: "BC1", PODate: "01/15/2024",
			LineItem: "00010", Description: "Widget assembly", AccountCode: "MAT 1000",
			POLineAmount:    decimal.RequireFromString("100.00"),
			StillToInvoice:  ledger.Known(decimal.RequireFromString("30.00")),
			InvoicedPercent: ledger.Known(decimal.RequireFromString("30")),
		}},
		TotalPages: 1, ChunkCount: 1,
	}
	require.NoError(t, e.store.SaveDocument(context.Background(), id, "hash-"+id, doc))
}

func multipartBody(t *testing.T, field string, files map[string]string, force bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	if force {
		require.NoError(t, mw.WriteField("force", "true"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthIsPublic(t *testing.T) {
	env := newEnv(t, false, nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAuthRequired(t *testing.T) {
	env := newEnv(t, false, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestExtractEndToEnd(t *testing.T) {
	env := newEnv(t, true, nil)

	body, ct := multipartBody(t, "files", map[string]string{
		"ledger.txt": ledgerPage,
		"notes.docx": "nope",
	}, false)
	rec := env.do(t, http.MethodPost, "/api/extract", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		Jobs []struct {
			Filename string `json:"filename"`
			JobID    string `json:"job_id"`
			DocID    string `json:"doc_id"`
			Error    string `json:"error"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 2)

	var jobID, docID string
	for _, j := range resp.Jobs {
		switch j.Filename {
		case "ledger.txt":
			jobID, docID = j.JobID, j.DocID
		case "notes.docx":
			assert.Contains(t, j.Error, "unsupported file type")
		}
	}
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/status", nil, "")
		return rec.Code == http.StatusOK && decode(t, rec)["status"] == string(pipeline.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	rec = env.do(t, http.MethodGet, "/api/documents/"+docID+"/records", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var records struct {
		Records []ledger.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records.Records, 1)
	assert.Equal(t, "4500000001", records.Records[0].PONumber)
	assert.Equal(t, "ledger.txt", records.Records[0].SourceFile)

	rec = env.do(t, http.MethodGet, "/api/documents/"+docID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["line_items"])
}

func TestExtractRejectsBadUploads(t *testing.T) {
	env := newEnv(t, false, nil)

	body, ct := multipartBody(t, "file", nil, false)
	rec := env.do(t, http.MethodPost, "/api/extract", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "file", map[string]string{"ledger.xlsx": "x"}, false)
	rec = env.do(t, http.MethodPost, "/api/extract", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/extract", bytes.NewBufferString("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobStatusNotFound(t *testing.T) {
	env := newEnv(t, false, nil)
	rec := env.do(t, http.MethodGet, "/api/jobs/missing/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	env := newEnv(t, false, nil)
	env.seed(t, "doc-1", "ledger_a.pdf")

	rec := env.do(t, http.MethodGet, "/api/documents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode(t, rec)["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].(map[string]any)["doc_id"])

	rec = env.do(t, http.MethodDelete, "/api/documents/doc-1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/documents/doc-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/documents/doc-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportDocumentFormats(t *testing.T) {
	env := newEnv(t, false, nil)
	env.seed(t, "doc-1", "ledger_a.pdf")

	rec := env.do(t, http.MethodGet, "/api/documents/doc-1/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ledger_a_extracted.xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{report.SheetFull, report.SheetSummary}, f.GetSheetList())

	rec = env.do(t, http.MethodGet, "/api/documents/doc-1/export?format=csv", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "4500000009")

	rec = env.do(t, http.MethodGet, "/api/documents/doc-1/export?format=html", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<table>")

	rec = env.do(t, http.MethodGet, "/api/documents/doc-1/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportFailedDocumentConflicts(t *testing.T) {
	env := newEnv(t, false, nil)
	require.NoError(t, env.store.SaveFailure(context.Background(), "bad", "bad.pdf", "h", "split bad.pdf: corrupt"))

	rec := env.do(t, http.MethodGet, "/api/documents/bad/export", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "corrupt")
}

func TestExportConsolidated(t *testing.T) {
	env := newEnv(t, false, nil)

	rec := env.do(t, http.MethodGet, "/api/export", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing stored yet")

	env.seed(t, "doc-1", "ledger_a.pdf")
	env.seed(t, "doc-2", "ledger_b.pdf")
	require.NoError(t, env.store.SaveFailure(context.Background(), "bad", "bad.pdf", "h", "corrupt"))

	rec = env.do(t, http.MethodGet, "/api/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{report.SheetAll, report.SheetSummary, "ledger_a", "ledger_b", "bad"}, f.GetSheetList())

	rec = env.do(t, http.MethodGet, "/api/export?doc_id=doc-2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	f2, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f2.Close()
	assert.Equal(t, []string{report.SheetAll, report.SheetSummary, "ledger_b"}, f2.GetSheetList())

	rec = env.do(t, http.MethodGet, "/api/export?doc_id=missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportConsolidatedSameFilename(t *testing.T) {
	env := newEnv(t, false, nil)
	env.seed(t, "doc-1", "ledger.pdf")
	env.seed(t, "doc-2", "ledger.pdf")
	require.NoError(t, env.store.SaveFailure(context.Background(), "bad", "ledger.pdf", "h", "corrupt"))

	rec := env.do(t, http.MethodGet, "/api/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{report.SheetAll, report.SheetSummary, "ledger", "ledger_1", "ledger_2"}, f.GetSheetList())

	for sheet, want := range map[string]int{"ledger": 2, "ledger_1": 2, "ledger_2": 1} {
		rows, err := f.GetRows(sheet)
		require.NoError(t, err)
		assert.Len(t, rows, want, sheet)
	}
}

func TestOCRStats(t *testing.T) {
	env := newEnv(t, false, nil)
	rec := env.do(t, http.MethodGet, "/api/stats/ocr", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	stats := ocr.NewLatencyStats(time.Hour)
	stats.Record(120)
	env = newEnv(t, false, stats)
	rec = env.do(t, http.MethodGet, "/api/stats/ocr", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, ocr.EnginePlainText, out["engine"])
	assert.EqualValues(t, 1, out["stats"].(map[string]any)["count"])
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ledger.pdf", "ledger.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\scans\ledger.pdf`, "ledger.pdf"},
		{"a..b.txt", "a_b.txt"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
