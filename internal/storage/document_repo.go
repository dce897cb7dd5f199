package storage

import (
	"context"
	"fmt"

	"lexrag/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// EnsureSchema keeps the documents table usable even if the operator never
// ran migrations by hand.
func (r *DocumentRepo) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS documents (
  document_id UUID PRIMARY KEY,
  filename TEXT NOT NULL,
  file_url TEXT NOT NULL,
  case_id TEXT,
  doc_type TEXT,
  index_status TEXT NOT NULL DEFAULT 'pending' CHECK (index_status IN ('pending','indexing','indexed','failed')),
  index_error TEXT,
  chunk_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_documents_case ON documents(case_id) WHERE case_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(index_status);
`
	if _, err := r.db.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

func (r *DocumentRepo) CreateDocument(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, filename, file_url, case_id, doc_type, index_status, index_error, chunk_count)
VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6, NULLIF($7,''), $8)`,
		d.DocumentID, d.Filename, d.FileURL, d.CaseID, d.DocType, d.IndexStatus, d.IndexError, d.ChunkCount,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetDocumentByID(ctx context.Context, documentID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id, filename, file_url, COALESCE(case_id,''), COALESCE(doc_type,''),
       index_status, COALESCE(index_error,''), chunk_count, created_at, updated_at
FROM documents
WHERE document_id=$1`, documentID).
		Scan(&d.DocumentID, &d.Filename, &d.FileURL, &d.CaseID, &d.DocType, &d.IndexStatus, &d.IndexError, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Document{}, fmt.Errorf("get document by id: %w", err)
	}
	return d, nil
}

// UpdateIndexStatus records the pipeline's progress on the document record.
// chunkCount is only meaningful for the indexed status; pass 0 otherwise.
func (r *DocumentRepo) UpdateIndexStatus(ctx context.Context, documentID, status, indexError string, chunkCount int) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET index_status=$2, index_error=NULLIF($3,''), chunk_count=$4, updated_at=NOW()
WHERE document_id=$1`, documentID, status, indexError, chunkCount)
	if err != nil {
		return fmt.Errorf("update index status: %w", err)
	}
	return nil
}

// ListDocuments returns all documents, or only those belonging to caseID
// when it is non-empty.
func (r *DocumentRepo) ListDocuments(ctx context.Context, caseID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id, filename, file_url, COALESCE(case_id,''), COALESCE(doc_type,''),
       index_status, COALESCE(index_error,''), chunk_count, created_at, updated_at
FROM documents
WHERE ($1 = '' OR case_id = $1)
ORDER BY created_at DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocumentID, &d.Filename, &d.FileURL, &d.CaseID, &d.DocType, &d.IndexStatus, &d.IndexError, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE document_id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
