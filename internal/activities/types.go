package activities

import (
	"lexrag/internal/chunker"
	"lexrag/internal/models"
)

type GetDocumentInput struct {
	DocumentID string `json:"document_id"`
}

type GetDocumentOutput struct {
	Found    bool            `json:"found"`
	Document models.Document `json:"document"`
}

type UpdateIndexStatusInput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ChunkCount int    `json:"chunk_count"`
}

type DownloadDocumentInput struct {
	URL string `json:"url"`
}

type DownloadDocumentOutput struct {
	TmpPath string `json:"tmp_path"`
	Bytes   int64  `json:"bytes"`
}

type ParseDocumentInput struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

type ParseDocumentOutput struct {
	Text string `json:"text"`
}

type ChunkTextInput struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type ChunkTextOutput struct {
	Chunks []chunker.Chunk `json:"chunks"`
}

// DeleteStaleChunksInput selects prior points for a document: by payload
// filters when set, otherwise by exact source match.
type DeleteStaleChunksInput struct {
	Collection string            `json:"collection"`
	Source     string            `json:"source,omitempty"`
	Filters    map[string]string `json:"filters,omitempty"`
}

type IndexChunksInput struct {
	Chunks       []chunker.Chunk   `json:"chunks"`
	Source       string            `json:"source"`
	Collection   string            `json:"collection"`
	ExtraPayload map[string]string `json:"extra_payload,omitempty"`
}

type IndexChunksOutput struct {
	Count int `json:"count"`
}

type CleanupTempFileInput struct {
	Path string `json:"path"`
}

type PurgeChunksInput struct {
	Collection string            `json:"collection"`
	Filters    map[string]string `json:"filters"`
}

type PurgeChunksOutput struct {
	Deleted int64 `json:"deleted"`
}
