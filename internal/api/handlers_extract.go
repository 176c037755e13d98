package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dgallion1/poledger/internal/pipeline"
	"github.com/dgallion1/poledger/internal/source"
	"github.com/go-chi/chi/v5"
)

// maxFilesPerRequest bounds the request body of a multi-file upload.
const maxFilesPerRequest = 10

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*maxFilesPerRequest+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := slices.Concat(r.MultipartForm.File["file"], r.MultipartForm.File["files"])
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > maxFilesPerRequest {
		jsonError(w, fmt.Sprintf("too many files (max %d)", maxFilesPerRequest), http.StatusBadRequest)
		return
	}

	force, _ := strconv.ParseBool(r.FormValue("force"))

	var (
		results  []map[string]any
		accepted int
	)
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		job, err := s.submit(fh, filename, force)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}
		accepted++
		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"doc_id":   job.DocID,
			"status":   job.Snapshot().Status,
			"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
		})
	}

	code := http.StatusAccepted
	if accepted == 0 {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]any{"jobs": results})
}

// submit reads one uploaded file and queues it.
func (s *Server) submit(fh *multipart.FileHeader, filename string, force bool) (*pipeline.Job, error) {
	if !source.IsSupportedExtension(filename) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}

	job := pipeline.NewJob(filename, data, force)
	if err := s.orchestrator.Submit(job); err != nil {
		return nil, err
	}
	s.log.Info("job queued", "job_id", job.ID, "doc_id", job.DocID, "filename", filename, "bytes", len(data))
	return job, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func sanitizeFilename(name string) string {
	// Browsers on Windows may send the full client path.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
