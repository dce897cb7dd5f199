package models

import "time"

// Index status values for a document record.
const (
	IndexStatusPending  = "pending"
	IndexStatusIndexing = "indexing"
	IndexStatusIndexed  = "indexed"
	IndexStatusFailed   = "failed"
)

// Document is the persisted record driving one indexing pipeline.
// Knowledge-base documents have no CaseID; case documents carry the
// owning case id and a document-type tag.
type Document struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	FileURL     string    `json:"file_url"`
	CaseID      string    `json:"case_id,omitempty"`
	DocType     string    `json:"doc_type,omitempty"`
	IndexStatus string    `json:"index_status"`
	IndexError  string    `json:"index_error,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SearchResult is one ranked hit from a collection search.
type SearchResult struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
}

// CollectionStats reports sizing and health for one collection.
type CollectionStats struct {
	Name         string `json:"name"`
	PointsCount  int64  `json:"points_count"`
	VectorsCount int64  `json:"vectors_count"`
	Status       string `json:"status"`
}
