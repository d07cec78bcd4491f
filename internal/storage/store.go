package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arothstein/symdex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested document doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch is returned when an embedding's length does
	// not match the rest of the index
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Store persists indexed documents and their embeddings in SQLite.
type Store struct {
	db *sql.DB
}

// Filter narrows a vector search. Zero values mean no restriction.
type Filter struct {
	ProjectRoot string // exact match on project root
	FilePath    string // exact match on absolute file path
}

// Candidate is one vector search hit. Distance is L2; lower is closer.
type Candidate struct {
	Doc      types.Document
	Distance float64
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewStore opens (or creates) the document database at dbPath and
// applies pending migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const documentColumns = `id, embed_text, content, file_path, project_root, relative_path,
	name, kind, language, start_line, end_line, parent_name, signature, return_type,
	imports, parameters, called_names`

// Add upserts documents with their embeddings in one transaction. docs
// and embeddings must line up; a failure rolls back the whole batch.
func (s *Store) Add(ctx context.Context, docs []types.Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("document/embedding length mismatch: %d vs %d", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range docs {
		if err := upsertDocument(ctx, tx, &docs[i], embeddings[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func upsertDocument(ctx context.Context, q querier, doc *types.Document, embedding []float32) error {
	query := `
		INSERT INTO documents (` + documentColumns + `, embedding, dimension)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embed_text = excluded.embed_text,
			content = excluded.content,
			file_path = excluded.file_path,
			project_root = excluded.project_root,
			relative_path = excluded.relative_path,
			name = excluded.name,
			kind = excluded.kind,
			language = excluded.language,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			parent_name = excluded.parent_name,
			signature = excluded.signature,
			return_type = excluded.return_type,
			imports = excluded.imports,
			parameters = excluded.parameters,
			called_names = excluded.called_names,
			embedding = excluded.embedding,
			dimension = excluded.dimension
	`

	m := &doc.Meta
	_, err := q.ExecContext(ctx, query,
		doc.ID, doc.EmbedText, doc.Content,
		m.FilePath, m.ProjectRoot, m.RelativePath,
		m.Name, string(m.Kind), m.Language, m.StartLine, m.EndLine,
		m.ParentName, m.Signature, m.ReturnType,
		types.MarshalStrings(m.Imports), types.MarshalStrings(m.Parameters), types.MarshalStrings(m.CalledNames),
		serializeVector(embedding), len(embedding))
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// scanDocument reads one document row produced by documentColumns.
func scanDocument(rows *sql.Rows) (types.Document, error) {
	var doc types.Document
	var kind, imports, params, called string

	err := rows.Scan(&doc.ID, &doc.EmbedText, &doc.Content,
		&doc.Meta.FilePath, &doc.Meta.ProjectRoot, &doc.Meta.RelativePath,
		&doc.Meta.Name, &kind, &doc.Meta.Language, &doc.Meta.StartLine, &doc.Meta.EndLine,
		&doc.Meta.ParentName, &doc.Meta.Signature, &doc.Meta.ReturnType,
		&imports, &params, &called)
	if err != nil {
		return doc, err
	}

	doc.Meta.Kind = types.SymbolKind(kind)
	doc.Meta.Imports = types.UnmarshalStrings(imports)
	doc.Meta.Parameters = types.UnmarshalStrings(params)
	doc.Meta.CalledNames = types.UnmarshalStrings(called)
	return doc, nil
}

func (s *Store) queryDocuments(ctx context.Context, where string, args ...interface{}) ([]types.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY file_path, start_line"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// GetAll returns every document, without embeddings. Used to resync
// derived indices after a restart.
func (s *Store) GetAll(ctx context.Context) ([]types.Document, error) {
	return s.queryDocuments(ctx, "")
}

// GetByID returns a single document or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*types.Document, error) {
	docs, err := s.queryDocuments(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return &docs[0], nil
}

// GetByName returns documents whose symbol name matches. kind narrows
// the match when non-empty.
func (s *Store) GetByName(ctx context.Context, name, kind string) ([]types.Document, error) {
	if kind != "" {
		return s.queryDocuments(ctx, "name = ? AND kind = ?", name, kind)
	}
	return s.queryDocuments(ctx, "name = ?", name)
}

// GetByPathPrefix returns documents whose absolute file path starts
// with prefix. Used for module summaries.
func (s *Store) GetByPathPrefix(ctx context.Context, prefix string) ([]types.Document, error) {
	return s.queryDocuments(ctx, `file_path = ? OR file_path LIKE ? ESCAPE '\'`, prefix, likePrefix(prefix))
}

// DeleteByFilePath removes every document from one file, returning the
// number removed.
func (s *Store) DeleteByFilePath(ctx context.Context, path string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE file_path = ?", path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents for %s: %w", path, err)
	}
	return res.RowsAffected()
}

// DeleteByProjectRoot removes every document under a project root.
func (s *Store) DeleteByProjectRoot(ctx context.Context, root string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE project_root = ?", root)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project %s: %w", root, err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// likePrefix escapes LIKE metacharacters in prefix and appends %.
func likePrefix(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+8)
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '%' || c == '_' || c == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	return string(escaped) + "%"
}
