package workflows

import (
	"context"
	"errors"
	"testing"

	"lexrag/internal/activities"
	"lexrag/internal/chunker"
	"lexrag/internal/models"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

type recordedCalls struct {
	statusUpdates []activities.UpdateIndexStatusInput
	deleteInputs  []activities.DeleteStaleChunksInput
	indexInputs   []activities.IndexChunksInput
	cleanupPaths  []string
}

func registerPipeline(env *testsuite.TestWorkflowEnvironment, doc models.Document, found bool, parseErr error, rec *recordedCalls) {
	registerActivityName(env, "GetDocumentActivity", func(context.Context, activities.GetDocumentInput) (activities.GetDocumentOutput, error) {
		return activities.GetDocumentOutput{Found: found, Document: doc}, nil
	})
	registerActivityName(env, "UpdateIndexStatusActivity", func(_ context.Context, in activities.UpdateIndexStatusInput) error {
		rec.statusUpdates = append(rec.statusUpdates, in)
		return nil
	})
	registerActivityName(env, "DownloadDocumentActivity", func(context.Context, activities.DownloadDocumentInput) (activities.DownloadDocumentOutput, error) {
		return activities.DownloadDocumentOutput{TmpPath: "/tmp/lexrag-test.pdf", Bytes: 2048}, nil
	})
	registerActivityName(env, "ParseDocumentActivity", func(context.Context, activities.ParseDocumentInput) (activities.ParseDocumentOutput, error) {
		if parseErr != nil {
			return activities.ParseDocumentOutput{}, parseErr
		}
		return activities.ParseDocumentOutput{Text: "section one of the act.\n\nsection two of the act."}, nil
	})
	registerActivityName(env, "ChunkTextActivity", func(_ context.Context, in activities.ChunkTextInput) (activities.ChunkTextOutput, error) {
		return activities.ChunkTextOutput{Chunks: []chunker.Chunk{
			{Content: "section one of the act.", Index: 0, Source: in.Source},
			{Content: "section two of the act.", Index: 1, Source: in.Source},
		}}, nil
	})
	registerActivityName(env, "DeleteStaleChunksActivity", func(_ context.Context, in activities.DeleteStaleChunksInput) error {
		rec.deleteInputs = append(rec.deleteInputs, in)
		return nil
	})
	registerActivityName(env, "IndexChunksActivity", func(_ context.Context, in activities.IndexChunksInput) (activities.IndexChunksOutput, error) {
		rec.indexInputs = append(rec.indexInputs, in)
		return activities.IndexChunksOutput{Count: len(in.Chunks)}, nil
	})
	registerActivityName(env, "CleanupTempFileActivity", func(_ context.Context, in activities.CleanupTempFileInput) error {
		rec.cleanupPaths = append(rec.cleanupPaths, in.Path)
		return nil
	})
}

func TestDocumentIndexWorkflowIndexesKnowledgeDocument(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIndexWorkflow)
	rec := &recordedCalls{}
	doc := models.Document{DocumentID: "doc-1", Filename: "msme_act.pdf", FileURL: "http://files.local/msme_act.pdf"}
	registerPipeline(env, doc, true, nil, rec)

	env.ExecuteWorkflow(DocumentIndexWorkflow, DocumentIndexInput{
		DocumentID:          "doc-1",
		KnowledgeCollection: "legal_knowledge",
		CaseDocsCollection:  "case_documents",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.IndexStatusIndexed, out)

	require.Len(t, rec.deleteInputs, 1)
	require.Equal(t, "legal_knowledge", rec.deleteInputs[0].Collection)
	require.Equal(t, "msme_act.pdf", rec.deleteInputs[0].Source)
	require.Empty(t, rec.deleteInputs[0].Filters)

	require.Len(t, rec.indexInputs, 1)
	require.Equal(t, "legal_knowledge", rec.indexInputs[0].Collection)
	require.Equal(t, "msme_act.pdf", rec.indexInputs[0].Source)
	require.Equal(t, map[string]string{"doc_id": "doc-1"}, rec.indexInputs[0].ExtraPayload)

	require.Equal(t, []string{"/tmp/lexrag-test.pdf"}, rec.cleanupPaths)

	require.NotEmpty(t, rec.statusUpdates)
	require.Equal(t, models.IndexStatusIndexing, rec.statusUpdates[0].Status)
	last := rec.statusUpdates[len(rec.statusUpdates)-1]
	require.Equal(t, models.IndexStatusIndexed, last.Status)
	require.Equal(t, 2, last.ChunkCount)
	require.Empty(t, last.Error)
}

func TestDocumentIndexWorkflowRoutesCaseDocuments(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIndexWorkflow)
	rec := &recordedCalls{}
	doc := models.Document{
		DocumentID: "doc-7",
		Filename:   "invoice_march.pdf",
		FileURL:    "http://files.local/invoice_march.pdf",
		CaseID:     "case-9",
		DocType:    "invoice",
	}
	registerPipeline(env, doc, true, nil, rec)

	env.ExecuteWorkflow(DocumentIndexWorkflow, DocumentIndexInput{
		DocumentID:          "doc-7",
		KnowledgeCollection: "legal_knowledge",
		CaseDocsCollection:  "case_documents",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	require.Len(t, rec.deleteInputs, 1)
	require.Equal(t, "case_documents", rec.deleteInputs[0].Collection)
	require.Empty(t, rec.deleteInputs[0].Source)
	require.Equal(t, map[string]string{"doc_id": "doc-7"}, rec.deleteInputs[0].Filters)

	require.Len(t, rec.indexInputs, 1)
	require.Equal(t, "case_documents", rec.indexInputs[0].Collection)
	require.Equal(t, map[string]string{
		"doc_id":   "doc-7",
		"case_id":  "case-9",
		"doc_type": "invoice",
	}, rec.indexInputs[0].ExtraPayload)
}

func TestDocumentIndexWorkflowParseFailureMarksFailed(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIndexWorkflow)
	rec := &recordedCalls{}
	doc := models.Document{DocumentID: "doc-2", Filename: "scan.pdf", FileURL: "http://files.local/scan.pdf"}
	registerPipeline(env, doc, true, errors.New("document parse failed: [Failed to parse document: no text layer]"), rec)

	env.ExecuteWorkflow(DocumentIndexWorkflow, DocumentIndexInput{
		DocumentID:          "doc-2",
		KnowledgeCollection: "legal_knowledge",
		CaseDocsCollection:  "case_documents",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.IndexStatusFailed, out)

	// nothing was indexed, the scratch file is still removed
	require.Empty(t, rec.indexInputs)
	require.Empty(t, rec.deleteInputs)
	require.Equal(t, []string{"/tmp/lexrag-test.pdf"}, rec.cleanupPaths)

	last := rec.statusUpdates[len(rec.statusUpdates)-1]
	require.Equal(t, models.IndexStatusFailed, last.Status)
	require.Contains(t, last.Error, "document parse failed")
	require.LessOrEqual(t, len(last.Error), 500)
}

func TestDocumentIndexWorkflowMissingDocument(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIndexWorkflow)
	rec := &recordedCalls{}
	registerPipeline(env, models.Document{}, false, nil, rec)

	env.ExecuteWorkflow(DocumentIndexWorkflow, DocumentIndexInput{
		DocumentID:          "ghost",
		KnowledgeCollection: "legal_knowledge",
		CaseDocsCollection:  "case_documents",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "not_found", out)
	require.Empty(t, rec.statusUpdates)
	require.Empty(t, rec.cleanupPaths)
}

func TestChunkPurgeWorkflowSourceBecomesFilter(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ChunkPurgeWorkflow)
	var got activities.PurgeChunksInput
	registerActivityName(env, "PurgeChunksActivity", func(_ context.Context, in activities.PurgeChunksInput) (activities.PurgeChunksOutput, error) {
		got = in
		return activities.PurgeChunksOutput{Deleted: 12}, nil
	})

	env.ExecuteWorkflow(ChunkPurgeWorkflow, ChunkPurgeInput{Collection: "legal_knowledge", Source: "msme_act.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var deleted int64
	require.NoError(t, env.GetWorkflowResult(&deleted))
	require.Equal(t, int64(12), deleted)
	require.Equal(t, map[string]string{"source": "msme_act.pdf"}, got.Filters)
}

func TestPurgeRouteKeysOnDocumentID(t *testing.T) {
	knowledge := PurgeRoute(models.Document{DocumentID: "d1", Filename: "act.pdf"}, "legal_knowledge", "case_documents")
	require.Equal(t, "legal_knowledge", knowledge.Collection)
	require.Equal(t, map[string]string{"doc_id": "d1"}, knowledge.Filters)
	require.Empty(t, knowledge.Source)

	caseDoc := PurgeRoute(models.Document{DocumentID: "d2", Filename: "act.pdf", CaseID: "c1"}, "legal_knowledge", "case_documents")
	require.Equal(t, "case_documents", caseDoc.Collection)
	require.Equal(t, map[string]string{"doc_id": "d2"}, caseDoc.Filters)
}

func TestIndexRoute(t *testing.T) {
	knowledge := indexRoute(models.Document{DocumentID: "d1", Filename: "act.pdf"}, "legal_knowledge", "case_documents")
	require.Equal(t, "legal_knowledge", knowledge.Collection)
	require.Equal(t, "act.pdf", knowledge.DedupSource)
	require.Empty(t, knowledge.DedupFilters)

	caseDoc := indexRoute(models.Document{DocumentID: "d2", Filename: "po.pdf", CaseID: "c1", DocType: "purchase_order"}, "legal_knowledge", "case_documents")
	require.Equal(t, "case_documents", caseDoc.Collection)
	require.Empty(t, caseDoc.DedupSource)
	require.Equal(t, map[string]string{"doc_id": "d2"}, caseDoc.DedupFilters)
	require.Equal(t, "purchase_order", caseDoc.Extra["doc_type"])
}
