package workflows

import (
	"time"

	"lexrag/internal/activities"
	"lexrag/internal/models"
	"lexrag/internal/util"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetIndexStatus = "GetIndexStatus"

// indexTarget is where a document's chunks land and how its prior points
// are identified for dedup on re-index.
type indexTarget struct {
	Collection   string
	DedupSource  string
	DedupFilters map[string]string
	Extra        map[string]string
}

// indexRoute picks the collection and payload for a document. Documents
// attached to a case go to the case collection keyed by doc_id; everything
// else is shared knowledge keyed by filename.
func indexRoute(doc models.Document, knowledgeColl, caseColl string) indexTarget {
	if doc.CaseID != "" {
		return indexTarget{
			Collection:   caseColl,
			DedupFilters: map[string]string{"doc_id": doc.DocumentID},
			Extra: map[string]string{
				"doc_id":   doc.DocumentID,
				"case_id":  doc.CaseID,
				"doc_type": doc.DocType,
			},
		}
	}
	return indexTarget{
		Collection:  knowledgeColl,
		DedupSource: doc.Filename,
		Extra:       map[string]string{"doc_id": doc.DocumentID},
	}
}

// PurgeRoute picks the collection and correlation filter for removing a
// document's points once its record is deleted. Both variants key on doc_id,
// never on the display name: filenames are not unique across documents.
func PurgeRoute(doc models.Document, knowledgeColl, caseColl string) ChunkPurgeInput {
	collection := knowledgeColl
	if doc.CaseID != "" {
		collection = caseColl
	}
	return ChunkPurgeInput{
		Collection: collection,
		Filters:    map[string]string{"doc_id": doc.DocumentID},
	}
}

// DocumentIndexWorkflow runs one document through download, parse, chunk and
// index. A step failure marks the document failed and ends the run cleanly;
// it never poisons other documents' jobs.
func DocumentIndexWorkflow(ctx workflow.Context, input DocumentIndexInput) (string, error) {
	status := IndexJobStatus{
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      models.IndexStatusPending,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIndexStatus, func() (IndexJobStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	status.CurrentStep = "load_document"
	status.Steps[status.CurrentStep] = "processing"
	var docOut activities.GetDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "GetDocumentActivity", activities.GetDocumentInput{DocumentID: input.DocumentID}).Get(ctx, &docOut); err != nil {
		return "", err
	}
	if !docOut.Found {
		status.Status = "not_found"
		status.Steps[status.CurrentStep] = "failed"
		return status.Status, nil
	}
	doc := docOut.Document
	target := indexRoute(doc, input.KnowledgeCollection, input.CaseDocsCollection)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "mark_indexing"
	_ = workflow.ExecuteActivity(ctx, "UpdateIndexStatusActivity", activities.UpdateIndexStatusInput{
		DocumentID: doc.DocumentID,
		Status:     models.IndexStatusIndexing,
	}).Get(ctx, nil)

	status.CurrentStep = "download"
	status.Steps[status.CurrentStep] = "processing"
	var dlOut activities.DownloadDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "DownloadDocumentActivity", activities.DownloadDocumentInput{URL: doc.FileURL}).Get(ctx, &dlOut); err != nil {
		return failDocument(ctx, &status, doc.DocumentID, err), nil
	}
	status.Steps[status.CurrentStep] = "done"
	tmpPath := dlOut.TmpPath

	status.CurrentStep = "parse"
	status.Steps[status.CurrentStep] = "processing"
	var parseOut activities.ParseDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ParseDocumentActivity", activities.ParseDocumentInput{Path: tmpPath, Source: doc.Filename}).Get(ctx, &parseOut); err != nil {
		cleanupTempFile(ctx, tmpPath)
		return failDocument(ctx, &status, doc.DocumentID, err), nil
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "chunk"
	status.Steps[status.CurrentStep] = "processing"
	var chunkOut activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{Text: parseOut.Text, Source: doc.Filename}).Get(ctx, &chunkOut); err != nil {
		cleanupTempFile(ctx, tmpPath)
		return failDocument(ctx, &status, doc.DocumentID, err), nil
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "delete_stale"
	_ = workflow.ExecuteActivity(ctx, "DeleteStaleChunksActivity", activities.DeleteStaleChunksInput{
		Collection: target.Collection,
		Source:     target.DedupSource,
		Filters:    target.DedupFilters,
	}).Get(ctx, nil)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "index"
	status.Steps[status.CurrentStep] = "processing"
	var idxOut activities.IndexChunksOutput
	if err := workflow.ExecuteActivity(ctx, "IndexChunksActivity", activities.IndexChunksInput{
		Chunks:       chunkOut.Chunks,
		Source:       doc.Filename,
		Collection:   target.Collection,
		ExtraPayload: target.Extra,
	}).Get(ctx, &idxOut); err != nil {
		cleanupTempFile(ctx, tmpPath)
		return failDocument(ctx, &status, doc.DocumentID, err), nil
	}
	status.Steps[status.CurrentStep] = "done"
	status.ChunkCount = idxOut.Count

	cleanupTempFile(ctx, tmpPath)

	status.CurrentStep = "mark_indexed"
	if err := workflow.ExecuteActivity(ctx, "UpdateIndexStatusActivity", activities.UpdateIndexStatusInput{
		DocumentID: doc.DocumentID,
		Status:     models.IndexStatusIndexed,
		ChunkCount: idxOut.Count,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = models.IndexStatusIndexed
	return status.Status, nil
}

// ChunkPurgeWorkflow removes every point matching the input; it backs
// document deletion so the API can return without waiting on the store.
func ChunkPurgeWorkflow(ctx workflow.Context, input ChunkPurgeInput) (int64, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	filters := input.Filters
	if len(filters) == 0 && input.Source != "" {
		filters = map[string]string{"source": input.Source}
	}
	var out activities.PurgeChunksOutput
	if err := workflow.ExecuteActivity(ctx, "PurgeChunksActivity", activities.PurgeChunksInput{
		Collection: input.Collection,
		Filters:    filters,
	}).Get(ctx, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// failDocument records a terminal failure on the document row and in the
// queryable status. Reasons are capped so a giant parser dump cannot bloat
// the row.
func failDocument(ctx workflow.Context, status *IndexJobStatus, documentID string, cause error) string {
	status.Status = models.IndexStatusFailed
	status.FailReason = util.Truncate(cause.Error(), 500)
	status.Steps[status.CurrentStep] = "failed"
	_ = workflow.ExecuteActivity(ctx, "UpdateIndexStatusActivity", activities.UpdateIndexStatusInput{
		DocumentID: documentID,
		Status:     models.IndexStatusFailed,
		Error:      status.FailReason,
	}).Get(ctx, nil)
	return status.Status
}

func cleanupTempFile(ctx workflow.Context, path string) {
	if path == "" {
		return
	}
	_ = workflow.ExecuteActivity(ctx, "CleanupTempFileActivity", activities.CleanupTempFileInput{Path: path}).Get(ctx, nil)
}
