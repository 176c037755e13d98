package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/dgallion1/poledger/internal/report"
	"github.com/dgallion1/poledger/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Document(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		storeError(w, err)
		return
	}
	resp := map[string]any{"document": info}
	if info.Status == store.StatusCompleted {
		doc, err := s.store.LoadDocument(r.Context(), info.ID)
		if err != nil {
			storeError(w, err)
			return
		}
		resp["summary"] = report.Summarize(doc)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocumentRecords(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadCompleted(r.Context(), w, chi.URLParam(r, "docID"))
	if !ok {
		return
	}
	records := doc.Records
	if records == nil {
		records = []ledger.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":    chi.URLParam(r, "docID"),
		"records":   records,
		"truncated": len(doc.TruncatedRecords()),
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		storeError(w, err)
		return
	}
	s.log.Info("document deleted", "doc_id", docID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": docID})
}

// handleExportDocument renders one document as xlsx (default), csv, or html.
func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	doc, ok := s.loadCompleted(r.Context(), w, docID)
	if !ok {
		return
	}
	base := strings.TrimSuffix(doc.Source, filepath.Ext(doc.Source)) + "_extracted"

	var buf bytes.Buffer
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", "xlsx":
		if err := report.WriteWorkbook(&buf, doc); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sendFile(w, contentTypeXLSX, base+".xlsx", buf.Bytes())
	case "csv":
		if err := report.WriteCSV(&buf, doc.Records); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sendFile(w, contentTypeCSV, base+".csv", buf.Bytes())
	case "html":
		page, err := report.RenderHTML(doc.Source, []report.FileSummary{report.Summarize(doc)}, []*ledger.Document{doc})
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Write(page)
	default:
		jsonError(w, fmt.Sprintf("unsupported format: %s", format), http.StatusBadRequest)
	}
}

// handleExportAll writes the consolidated workbook of every stored document,
// or of the documents named by repeated doc_id parameters.
func (s *Server) handleExportAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var infos []store.DocumentInfo
	if ids := r.URL.Query()["doc_id"]; len(ids) > 0 {
		for _, id := range ids {
			info, err := s.store.Document(ctx, id)
			if err != nil {
				storeError(w, err)
				return
			}
			infos = append(infos, *info)
		}
	} else {
		var err error
		if infos, err = s.store.ListDocuments(ctx); err != nil {
			jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if len(infos) == 0 {
		jsonError(w, "no documents to export", http.StatusNotFound)
		return
	}

	var (
		docs  []*ledger.Document
		files []report.FileSummary
	)
	for _, info := range infos {
		if info.Status != store.StatusCompleted {
			docs = append(docs, nil)
			files = append(files, report.Failed(info.Filename, errors.New(info.Error)))
			continue
		}
		doc, err := s.store.LoadDocument(ctx, info.ID)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		docs = append(docs, doc)
		files = append(files, report.Summarize(doc))
	}

	var buf bytes.Buffer
	if err := report.WriteConsolidated(&buf, docs, files); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendFile(w, contentTypeXLSX, "po_ledger_consolidated.xlsx", buf.Bytes())
}

// loadCompleted loads a completed document, writing the error response
// itself when it cannot.
func (s *Server) loadCompleted(ctx context.Context, w http.ResponseWriter, docID string) (*ledger.Document, bool) {
	info, err := s.store.Document(ctx, docID)
	if err != nil {
		storeError(w, err)
		return nil, false
	}
	if info.Status != store.StatusCompleted {
		jsonError(w, fmt.Sprintf("document %s is %s: %s", docID, info.Status, info.Error), http.StatusConflict)
		return nil, false
	}
	doc, err := s.store.LoadDocument(ctx, docID)
	if err != nil {
		storeError(w, err)
		return nil, false
	}
	return doc, true
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

func sendFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}
