package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/mindmup-mcp/internal/parser"
	"github.com/dshills/mindmup-mcp/internal/remote"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested document doesn't exist
	ErrNotFound = fmt.Errorf("document %w", types.ErrNotFound)
	// ErrInvalidDocument is returned when a document is missing required fields
	ErrInvalidDocument = errors.New("invalid document")
)

var _ Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	parser *parser.Parser
	now    func() time.Time
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn(dbPath))
	if err != nil {
		return nil, err
	}

	// WAL is requested in the DSN; in-memory databases ignore it
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if strings.HasPrefix(dbPath, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				dbPath = filepath.Join(home, dbPath[2:])
			}
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, parser: parser.New(), now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Document operations

// upsertDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertDocumentWithQuerier(ctx context.Context, q querier, doc *Document) (bool, error) {
	if doc.ID == "" || doc.Name == "" {
		return false, fmt.Errorf("%w: id and name are required", ErrInvalidDocument)
	}
	if doc.MimeType == "" {
		doc.MimeType = remote.MimeJSON
	}
	doc.ContentHash = sha256.Sum256(doc.Content)
	doc.SizeBytes = int64(len(doc.Content))

	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.ModifiedAt.IsZero() {
		doc.ModifiedAt = now
	}

	// Unchanged content keeps the stored timestamps
	var storedHash []byte
	err := q.QueryRowContext(ctx, "SELECT content_hash FROM documents WHERE id = ?", doc.ID).Scan(&storedHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("failed to read document hash: %w", err)
	default:
		if string(storedHash) == string(doc.ContentHash[:]) {
			_, err := q.ExecContext(ctx,
				"UPDATE documents SET name = ?, mime_type = ?, parent_id = ?, trashed = ? WHERE id = ?",
				doc.Name, doc.MimeType, doc.ParentID, doc.Trashed, doc.ID)
			if err != nil {
				return false, fmt.Errorf("failed to update document: %w", err)
			}
			return false, nil
		}
	}

	query := `
		INSERT INTO documents (id, name, mime_type, parent_id, content, content_hash, size_bytes, trashed, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mime_type = excluded.mime_type,
			parent_id = excluded.parent_id,
			content = excluded.content,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			trashed = excluded.trashed,
			modified_at = excluded.modified_at
	`
	_, err = q.ExecContext(ctx, query,
		doc.ID, doc.Name, doc.MimeType, doc.ParentID, doc.Content, doc.ContentHash[:],
		doc.SizeBytes, doc.Trashed, doc.CreatedAt.UTC(), doc.ModifiedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to upsert document: %w", err)
	}
	return true, nil
}

// UpsertDocument stores doc, reporting whether its content changed
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *Document) (bool, error) {
	return s.upsertDocumentWithQuerier(ctx, s.db, doc)
}

const documentColumns = `id, name, mime_type, parent_id, content_hash, size_bytes, trashed, created_at, modified_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, extra ...any) (*Document, error) {
	var doc Document
	var hash []byte
	dest := append([]any{
		&doc.ID, &doc.Name, &doc.MimeType, &doc.ParentID, &hash,
		&doc.SizeBytes, &doc.Trashed, &doc.CreatedAt, &doc.ModifiedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	copy(doc.ContentHash[:], hash)
	return &doc, nil
}

// GetDocument returns the document with its content
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*Document, error) {
	var content []byte
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+", content FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	doc.Content = content
	return doc, nil
}

// DeleteDocument removes a document
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListDocuments returns document metadata matching q, newest first
func (s *SQLiteStorage) ListDocuments(ctx context.Context, q remote.Query) ([]*Document, error) {
	var where []string
	var args []any

	if !q.IncludeTrashed {
		where = append(where, "trashed = 0")
	}
	if q.FolderID != "" {
		where = append(where, "parent_id = ?")
		args = append(args, q.FolderID)
	}
	if q.NameContains != "" {
		where = append(where, "instr(lower(name), lower(?)) > 0")
		args = append(args, q.NameContains)
	}
	if len(q.MimeTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.MimeTypes)), ",")
		where = append(where, "mime_type IN ("+placeholders+")")
		for _, mt := range q.MimeTypes {
			args = append(args, mt)
		}
	}

	query := "SELECT " + documentColumns + " FROM documents"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY modified_at DESC, id LIMIT ?"
	args = append(args, q.Limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of stored documents, trashed included
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// remote.Store implementation

// Metadata returns the document's metadata
func (s *SQLiteStorage) Metadata(ctx context.Context, fileID string) (*remote.FileInfo, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", fileID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	info := doc.FileInfo()
	return &info, nil
}

// Content returns the raw document body
func (s *SQLiteStorage) Content(ctx context.Context, fileID string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, "SELECT content FROM documents WHERE id = ?", fileID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	return content, nil
}

// List returns files matching q, newest first
func (s *SQLiteStorage) List(ctx context.Context, q remote.Query) ([]remote.FileInfo, error) {
	docs, err := s.ListDocuments(ctx, q)
	if err != nil {
		return nil, err
	}
	files := make([]remote.FileInfo, 0, len(docs))
	for _, d := range docs {
		files = append(files, d.FileInfo())
	}
	return files, nil
}

// Import operations

// ImportFile parses the file at path and stores it as a document.
// The id defaults to the file name without extension.
func (s *SQLiteStorage) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	return s.importWithQuerier(ctx, s.db, path, opts)
}

// ImportFiles imports all paths in one transaction
func (s *SQLiteStorage) ImportFiles(ctx context.Context, paths []string, opts ImportOptions) ([]*ImportResult, error) {
	if opts.ID != "" && len(paths) > 1 {
		return nil, fmt.Errorf("%w: an explicit id requires a single file", ErrInvalidDocument)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	results := make([]*ImportResult, 0, len(paths))
	for _, path := range paths {
		res, err := s.importWithQuerier(ctx, tx, path, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return results, nil
}

func (s *SQLiteStorage) importWithQuerier(ctx context.Context, q querier, path string, opts ImportOptions) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	parsed, err := s.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	name := filepath.Base(path)
	id := opts.ID
	if id == "" {
		id = strings.TrimSuffix(name, filepath.Ext(name))
	}
	mimeType := remote.MimeJSON
	if strings.EqualFold(filepath.Ext(name), ".mup") {
		mimeType = remote.MimeMindmup
	}

	doc := &Document{
		ID:         id,
		Name:       name,
		MimeType:   mimeType,
		ParentID:   opts.ParentID,
		Content:    data,
		ModifiedAt: info.ModTime(),
	}
	changed, err := s.upsertDocumentWithQuerier(ctx, q, doc)
	if err != nil {
		return nil, err
	}

	return &ImportResult{
		Path:      path,
		ID:        id,
		Title:     parsed.Title,
		NodeCount: parsed.NodeCount(),
		SizeBytes: doc.SizeBytes,
		Changed:   changed,
	}, nil
}
