package workflows

type DocumentIndexInput struct {
	DocumentID          string `json:"document_id"`
	KnowledgeCollection string `json:"knowledge_collection"`
	CaseDocsCollection  string `json:"case_docs_collection"`
}

type ChunkPurgeInput struct {
	Collection string            `json:"collection"`
	Source     string            `json:"source,omitempty"`
	Filters    map[string]string `json:"filters,omitempty"`
}

type IndexJobStatus struct {
	DocumentID  string            `json:"document_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	ChunkCount  int               `json:"chunk_count"`
	Steps       map[string]string `json:"steps"`
}
