// Package store persists extracted ledger documents in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a document id or hash is unknown.
var ErrNotFound = errors.New("document not found")

// Document statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	total_pages  INTEGER NOT NULL DEFAULT 0,
	chunk_count  INTEGER NOT NULL DEFAULT 0,
	was_split    INTEGER NOT NULL DEFAULT 0,
	discarded    INTEGER NOT NULL DEFAULT 0,
	record_count INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_hash ON documents (content_hash, status);

CREATE TABLE IF NOT EXISTS records (
	doc_id           TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
	seq              INTEGER NOT NULL,
	source_file      TEXT NOT NULL,
	page             INTEGER NOT NULL,
	po_number        TEXT NOT NULL,
	po_type          TEXT NOT NULL,
	vendor_id        TEXT NOT NULL,
	vendor_name      TEXT NOT NULL,
	buyer_code       TEXT NOT NULL,
	po_date          TEXT NOT NULL,
	line_item        TEXT NOT NULL,
	description      TEXT NOT NULL,
	account_code     TEXT NOT NULL,
	po_line_amount   TEXT NOT NULL,
	still_to_invoice TEXT,
	invoiced_percent TEXT,
	PRIMARY KEY (doc_id, seq)
);
`

// DocumentInfo is the stored metadata of one extraction.
type DocumentInfo struct {
	ID          string    `json:"doc_id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	TotalPages  int       `json:"total_pages"`
	ChunkCount  int       `json:"chunk_count"`
	WasSplit    bool      `json:"was_split"`
	Discarded   int       `json:"discarded_pending"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a SQLite-backed document store. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDocument stores a completed extraction and its records.
func (s *Store) SaveDocument(ctx context.Context, id, hash string, doc *ledger.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO documents
		(id, filename, content_hash, status, total_pages, chunk_count, was_split, discarded, record_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, doc.Source, hash, StatusCompleted, doc.TotalPages, doc.ChunkCount, doc.WasSplit,
		doc.Discarded, len(doc.Records), s.now().UTC())
	if err != nil {
		return fmt.Errorf("insert document %s: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(doc_id, seq, source_file, page, po_number, po_type, vendor_id, vendor_name, buyer_code,
		 po_date, line_item, description, account_code, po_line_amount, still_to_invoice, invoiced_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()

	for i, r := range doc.Records {
		_, err := stmt.ExecContext(ctx, id, i, r.SourceFile, r.Page, r.PONumber, r.POType, r.VendorID,
			r.VendorName, r.BuyerCode, r.PODate, r.LineItem, r.Description, r.AccountCode,
			r.POLineAmount.String(), figureValue(r.StillToInvoice), figureValue(r.InvoicedPercent))
		if err != nil {
			return fmt.Errorf("insert record %d of %s: %w", i, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", id, err)
	}
	return nil
}

// SaveFailure records a document whose extraction failed.
func (s *Store) SaveFailure(ctx context.Context, id, filename, hash, reason string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents
		(id, filename, content_hash, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, filename, hash, StatusFailed, reason, s.now().UTC())
	if err != nil {
		return fmt.Errorf("insert failure %s: %w", id, err)
	}
	return nil
}

const documentColumns = `id, filename, content_hash, status, error, total_pages, chunk_count,
	was_split, discarded, record_count, created_at`

// FindByHash returns the most recent completed document with the given
// content hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (*DocumentInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE content_hash = ? AND status = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		hash, StatusCompleted)
	return scanDocument(row)
}

// Document returns one document's metadata.
func (s *Store) Document(ctx context.Context, id string) (*DocumentInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// ListDocuments returns all documents, oldest first.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		info, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

// LoadDocument rebuilds a completed document with its records in order.
func (s *Store) LoadDocument(ctx context.Context, id string) (*ledger.Document, error) {
	info, err := s.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	if info.Status != StatusCompleted {
		return nil, fmt.Errorf("document %s: status %s", id, info.Status)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source_file, page, po_number, po_type, vendor_id,
		vendor_name, buyer_code, po_date, line_item, description, account_code, po_line_amount,
		still_to_invoice, invoiced_percent FROM records WHERE doc_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load records %s: %w", id, err)
	}
	defer rows.Close()

	doc := &ledger.Document{
		Source:     info.Filename,
		Records:    make([]ledger.Record, 0, info.RecordCount),
		TotalPages: info.TotalPages,
		ChunkCount: info.ChunkCount,
		WasSplit:   info.WasSplit,
		Discarded:  info.Discarded,
	}
	for rows.Next() {
		var (
			r              ledger.Record
			amount         string
			still, percent sql.NullString
		)
		if err := rows.Scan(&r.SourceFile, &r.Page, &r.PONumber, &r.POType, &r.VendorID,
			&r.VendorName, &r.BuyerCode, &r.PODate, &r.LineItem, &r.Description, &r.AccountCode,
			&amount, &still, &percent); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if r.POLineAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("record amount %q: %w", amount, err)
		}
		if r.StillToInvoice, err = scanFigure(still); err != nil {
			return nil, err
		}
		if r.InvoicedPercent, err = scanFigure(percent); err != nil {
			return nil, err
		}
		doc.Records = append(doc.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load records %s: %w", id, err)
	}
	return doc, nil
}

// DeleteDocument removes a document and its records.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsBusy reports whether err is a transient SQLite lock conflict.
func IsBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*DocumentInfo, error) {
	var info DocumentInfo
	err := row.Scan(&info.ID, &info.Filename, &info.ContentHash, &info.Status, &info.Error,
		&info.TotalPages, &info.ChunkCount, &info.WasSplit, &info.Discarded, &info.RecordCount,
		&info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &info, nil
}

// figureValue maps the truncation sentinel to NULL.
func figureValue(f ledger.Figure) sql.NullString {
	if f.Truncated {
		return sql.NullString{}
	}
	return sql.NullString{String: f.Value.String(), Valid: true}
}

func scanFigure(v sql.NullString) (ledger.Figure, error) {
	if !v.Valid {
		return ledger.TruncatedFigure, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return ledger.Figure{}, fmt.Errorf("record figure %q: %w", v.String, err)
	}
	return ledger.Known(d), nil
}
