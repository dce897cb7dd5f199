package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.GetDocumentActivity)
	w.RegisterActivity(a.UpdateIndexStatusActivity)
	w.RegisterActivity(a.DownloadDocumentActivity)
	w.RegisterActivity(a.ParseDocumentActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.DeleteStaleChunksActivity)
	w.RegisterActivity(a.IndexChunksActivity)
	w.RegisterActivity(a.CleanupTempFileActivity)
	w.RegisterActivity(a.PurgeChunksActivity)
}
