package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/dgallion1/poledger/internal/ocr"
	"github.com/dgallion1/poledger/internal/source"
	"github.com/dgallion1/poledger/internal/store"
)

// DocumentStore is the persistence a worker needs.
type DocumentStore interface {
	FindByHash(ctx context.Context, hash string) (*store.DocumentInfo, error)
	SaveDocument(ctx context.Context, id, hash string, doc *ledger.Document) error
	SaveFailure(ctx context.Context, id, filename, hash, reason string) error
}

// Worker processes a single document job.
type Worker struct {
	extractor *Extractor
	store     DocumentStore
	engine    ocr.Engine
	log       *slog.Logger
}

// NewWorker returns a worker that reads PDFs with engine.
func NewWorker(extractor *Extractor, st DocumentStore, engine ocr.Engine, log *slog.Logger) *Worker {
	return &Worker{
		extractor: extractor,
		store:     st,
		engine:    engine,
		log:       log,
	}
}

// Process runs the full extraction pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	data := job.FileData()
	defer job.releaseFileData()

	hash := ContentHashHex(data)
	job.SetContentHash(hash)

	// Phase 1: Dedup check
	if !job.Force {
		existing, err := w.store.FindByHash(ctx, hash)
		switch {
		case err == nil:
			log.Info("duplicate document, skipping", "existing_doc_id", existing.ID)
			job.SetDocID(existing.ID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	// Phase 2: Split and recognize
	job.SetStatus(StatusSplitting, "splitting")
	src, err := source.ForFile(job.Filename, w.engine)
	if err != nil {
		w.fail(ctx, log, job, hash, "splitting", err)
		return
	}

	doc, err := w.extractor.Extract(ctx, job.Filename, data, src, job)
	if err != nil {
		w.fail(ctx, log, job, hash, "recognizing", err)
		return
	}
	job.SetResult(doc)

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	err = withRetry(ctx, func() error {
		return w.store.SaveDocument(ctx, job.DocID, hash, doc)
	})
	if err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	log.Info("document stored", "records", len(doc.Records), "pages", doc.TotalPages, "chunks", doc.ChunkCount)
	job.SetStatus(StatusCompleted, "done")
}

// fail marks the job failed and records the failure so it shows up in the
// document list.
func (w *Worker) fail(ctx context.Context, log *slog.Logger, job *Job, hash, phase string, cause error) {
	log.Error("extraction failed", "phase", phase, "error", cause)
	job.AddError(cause.Error())
	err := withRetry(ctx, func() error {
		return w.store.SaveFailure(ctx, job.DocID, job.Filename, hash, cause.Error())
	})
	if err != nil {
		log.Error("recording failure failed", "error", err)
	}
	job.SetStatus(StatusFailed, phase)
}
