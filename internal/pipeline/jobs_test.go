package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/poledger/internal/chunker"
	"github.com/dgallion1/poledger/internal/ledger"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusSplitting, "splitting into windows"},
		{StatusRecognizing, "recognizing pages"},
		{StatusStoring, "storing records"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_SetStatusFailed(t *testing.T) {
	job := &Job{
		ID:        "test-fail",
		Status:    StatusRecognizing,
		UpdatedAt: time.Now(),
	}
	job.SetStatus(StatusFailed, "recognition error")
	if job.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, job.Status)
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("chunk 3 failed")
	job.AddError("chunk 7 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "chunk 3 failed" {
		t.Errorf("expected first error %q, got %q", "chunk 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_ChunkProgress(t *testing.T) {
	job := NewJob("ledger.pdf", nil, false)
	chunks := chunker.Plan(25, 10)
	job.Planned(chunks)

	snap := job.Snapshot()
	if snap.Status != StatusRecognizing {
		t.Errorf("expected status %q, got %q", StatusRecognizing, snap.Status)
	}
	if snap.Progress.TotalChunks != 3 {
		t.Errorf("expected 3 total chunks, got %d", snap.Progress.TotalChunks)
	}

	job.ChunkDone(chunks[0], 4)
	job.ChunkDone(chunks[1], 0)
	job.ChunkDone(chunks[2], 2)

	snap = job.Snapshot()
	if snap.Progress.ChunksProcessed != 3 {
		t.Errorf("expected 3 chunks processed, got %d", snap.Progress.ChunksProcessed)
	}
	if snap.Progress.Records != 6 {
		t.Errorf("expected 6 records, got %d", snap.Progress.Records)
	}
	if snap.Phase != "recognized part_3_pages_21-25" {
		t.Errorf("expected phase to name the last chunk, got %q", snap.Phase)
	}
}

func TestJob_SetResult(t *testing.T) {
	job := NewJob("ledger.pdf", nil, false)
	job.SetResult(&ledger.Document{Records: []ledger.Record{
		{StillToInvoice: ledger.TruncatedFigure, InvoicedPercent: ledger.TruncatedFigure},
		{},
	}})

	snap := job.Snapshot()
	if snap.Progress.Records != 2 || snap.Progress.Truncated != 1 {
		t.Errorf("expected 2 records with 1 truncated, got %d and %d", snap.Progress.Records, snap.Progress.Truncated)
	}
}

func TestNewJob(t *testing.T) {
	a := NewJob("a.pdf", []byte("x"), true)
	b := NewJob("a.pdf", []byte("x"), false)
	if a.ID == b.ID || a.DocID == b.DocID || a.ID == a.DocID {
		t.Errorf("expected unique ids, got %s/%s and %s/%s", a.ID, a.DocID, b.ID, b.DocID)
	}
	if a.Status != StatusQueued || !a.Force || b.Force {
		t.Errorf("unexpected initial state: %+v", a.Snapshot())
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", Status: StatusCompleted, UpdatedAt: time.Now()}
	store.Put(expired)
	running := &Job{ID: "running", Status: StatusRecognizing, UpdatedAt: time.Now()}
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", Status: StatusFailed, UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Get("running") == nil {
		t.Error("expected unfinished job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
