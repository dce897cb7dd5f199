package activities

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"lexrag/internal/chunker"
	"lexrag/internal/config"
	"lexrag/internal/parser"
	"lexrag/internal/storage"
	"lexrag/internal/util"
	"lexrag/internal/vectorstore"

	"github.com/jackc/pgx/v5"
)

// Activities carries the shared handles every indexing job uses: the
// document repo, the vector store and the parser are process-lifetime
// singletons.
type Activities struct {
	cfg      config.Config
	docRepo  *storage.DocumentRepo
	store    *vectorstore.Store
	parser   *parser.Parser
	download *http.Client
}

func New(cfg config.Config, db *storage.DB, store *vectorstore.Store, p *parser.Parser) *Activities {
	return &Activities{
		cfg:     cfg,
		docRepo: storage.NewDocumentRepo(db),
		store:   store,
		parser:  p,
		// document downloads are slow; redirects are followed by default
		download: &http.Client{Timeout: 120 * time.Second},
	}
}

func (a *Activities) GetDocumentActivity(ctx context.Context, in GetDocumentInput) (GetDocumentOutput, error) {
	doc, err := a.docRepo.GetDocumentByID(ctx, in.DocumentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GetDocumentOutput{Found: false}, nil
		}
		return GetDocumentOutput{}, err
	}
	return GetDocumentOutput{Found: true, Document: doc}, nil
}

func (a *Activities) UpdateIndexStatusActivity(ctx context.Context, in UpdateIndexStatusInput) error {
	return a.docRepo.UpdateIndexStatus(ctx, in.DocumentID, in.Status, in.Error, in.ChunkCount)
}

// DownloadDocumentActivity materializes the document's backing file into a
// scratch temp file and returns its path. The caller owns cleanup.
func (a *Activities) DownloadDocumentActivity(ctx context.Context, in DownloadDocumentInput) (DownloadDocumentOutput, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return DownloadDocumentOutput{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := a.download.Do(req)
	if err != nil {
		return DownloadDocumentOutput{}, fmt.Errorf("download document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return DownloadDocumentOutput{}, fmt.Errorf("download document: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "lexrag-*"+suffixForURL(in.URL))
	if err != nil {
		return DownloadDocumentOutput{}, fmt.Errorf("create scratch file: %w", err)
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return DownloadDocumentOutput{}, fmt.Errorf("write scratch file: %w", err)
	}
	log.Printf("downloaded %d bytes to %s", n, tmp.Name())
	return DownloadDocumentOutput{TmpPath: tmp.Name(), Bytes: n}, nil
}

func (a *Activities) ParseDocumentActivity(ctx context.Context, in ParseDocumentInput) (ParseDocumentOutput, error) {
	text := a.parser.Parse(ctx, in.Path)
	if text == "" || parser.Failed(text) {
		return ParseDocumentOutput{}, fmt.Errorf("%w: %s", util.ErrParseFailed, util.Truncate(text, 200))
	}
	return ParseDocumentOutput{Text: util.SanitizeText(text)}, nil
}

func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	c, err := chunker.New(a.cfg.ChunkSize, a.cfg.ChunkOverlap, chunker.DefaultCharsPerToken)
	if err != nil {
		return ChunkTextOutput{}, fmt.Errorf("chunker config: %w", err)
	}
	chunks := c.ChunkText(in.Text, in.Source)
	if len(chunks) == 0 {
		return ChunkTextOutput{}, util.ErrNoChunksGenerated
	}
	return ChunkTextOutput{Chunks: chunks}, nil
}

// DeleteStaleChunksActivity removes a document's prior points before a
// re-index. Deletion is best-effort; a failure is logged, never fatal.
func (a *Activities) DeleteStaleChunksActivity(ctx context.Context, in DeleteStaleChunksInput) error {
	var err error
	if len(in.Filters) > 0 {
		_, err = a.store.DeleteByFilter(ctx, in.Collection, in.Filters)
	} else if in.Source != "" {
		_, err = a.store.DeleteBySource(ctx, in.Source, in.Collection)
	}
	if err != nil {
		log.Printf("delete stale chunks failed in %s: %v", in.Collection, err)
	}
	return nil
}

func (a *Activities) IndexChunksActivity(ctx context.Context, in IndexChunksInput) (IndexChunksOutput, error) {
	count, err := a.store.IndexChunks(ctx, in.Chunks, in.Source, in.Collection, in.ExtraPayload)
	if err != nil {
		return IndexChunksOutput{}, err
	}
	return IndexChunksOutput{Count: count}, nil
}

// CleanupTempFileActivity deletes the scratch file; a missing file is fine.
func (a *Activities) CleanupTempFileActivity(ctx context.Context, in CleanupTempFileInput) error {
	_ = ctx
	if in.Path == "" {
		return nil
	}
	if err := os.Remove(in.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove scratch file: %w", err)
	}
	return nil
}

// PurgeChunksActivity deletes all points matching the filters; used when a
// document record is removed. Best-effort like all deletions.
func (a *Activities) PurgeChunksActivity(ctx context.Context, in PurgeChunksInput) (PurgeChunksOutput, error) {
	deleted, err := a.store.DeleteByFilter(ctx, in.Collection, in.Filters)
	if err != nil {
		log.Printf("purge chunks failed in %s: %v", in.Collection, err)
		return PurgeChunksOutput{}, nil
	}
	return PurgeChunksOutput{Deleted: deleted}, nil
}

// suffixForURL infers the scratch-file extension from the URL hint,
// defaulting to .pdf.
func suffixForURL(url string) string {
	if strings.Contains(strings.ToLower(url), ".doc") {
		return ".docx"
	}
	return ".pdf"
}
