package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lexrag/internal/config"
	"lexrag/internal/models"
	"lexrag/internal/providers"
	"lexrag/internal/storage"
	"lexrag/internal/vectorstore"
	"lexrag/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg      config.Config
	db       *storage.DB
	docRepo  *storage.DocumentRepo
	store    *vectorstore.Store
	temporal tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg.EmbedProviders, cfg.EmbedDim)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	docRepo := storage.NewDocumentRepo(db)
	if err := docRepo.EnsureSchema(ctx); err != nil {
		panic(err)
	}
	return &Server{
		cfg:      cfg,
		db:       db,
		docRepo:  docRepo,
		store:    vectorstore.NewStore(db, pm, cfg.EmbedDim),
		temporal: tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentScoped)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/context", s.handleContext)
	mux.HandleFunc("/collections/", s.handleCollectionScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.docRepo.ListDocuments(r.Context(), strings.TrimSpace(r.URL.Query().Get("case_id")))
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case http.MethodPost:
		var req struct {
			Filename string `json:"filename"`
			FileURL  string `json:"file_url"`
			CaseID   string `json:"case_id"`
			DocType  string `json:"doc_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Filename = strings.TrimSpace(req.Filename)
		req.FileURL = strings.TrimSpace(req.FileURL)
		if req.Filename == "" || req.FileURL == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("filename and file_url are required"))
			return
		}

		doc := models.Document{
			DocumentID:  uuid.NewString(),
			Filename:    req.Filename,
			FileURL:     req.FileURL,
			CaseID:      strings.TrimSpace(req.CaseID),
			DocType:     strings.TrimSpace(req.DocType),
			IndexStatus: models.IndexStatusPending,
		}
		if err := s.docRepo.CreateDocument(r.Context(), doc); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}

		we, err := s.startIndexWorkflow(r.Context(), doc.DocumentID, false)
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"document_id": doc.DocumentID,
			"status":      doc.IndexStatus,
			"workflow_id": we.GetID(),
			"run_id":      we.GetRunID(),
		})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	documentID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			doc, err := s.docRepo.GetDocumentByID(r.Context(), documentID)
			if err != nil {
				writeErr(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, doc)
		case http.MethodDelete:
			s.handleDeleteDocument(w, r, documentID)
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	if len(parts) == 2 && parts[1] == "reindex" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if _, err := s.docRepo.GetDocumentByID(r.Context(), documentID); err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		if err := s.docRepo.UpdateIndexStatus(r.Context(), documentID, models.IndexStatusPending, "", 0); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		we, err := s.startIndexWorkflow(r.Context(), documentID, true)
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
		return
	}

	if len(parts) == 2 && parts[1] == "status" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var status workflows.IndexJobStatus
		resp, err := s.temporal.QueryWorkflow(r.Context(), "index-"+documentID, "", workflows.QueryGetIndexStatus)
		if err != nil {
			// Fall back to the persisted record when no workflow run is
			// around to query.
			doc, dErr := s.docRepo.GetDocumentByID(r.Context(), documentID)
			if dErr != nil {
				writeErr(w, http.StatusNotFound, dErr)
				return
			}
			writeJSON(w, http.StatusOK, workflows.IndexJobStatus{
				DocumentID: doc.DocumentID,
				Status:     doc.IndexStatus,
				FailReason: doc.IndexError,
				ChunkCount: doc.ChunkCount,
			})
			return
		}
		if err := resp.Get(&status); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	doc, err := s.docRepo.GetDocumentByID(r.Context(), documentID)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}

	purge := workflows.PurgeRoute(doc, s.cfg.KnowledgeCollection, s.cfg.CaseDocsCollection)
	// The purge outlives the request; the API does not wait on the store.
	if _, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    "purge-" + documentID,
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.ChunkPurgeWorkflow, purge); err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}

	if err := s.docRepo.DeleteDocument(r.Context(), documentID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "document_id": documentID})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query          string            `json:"query"`
		Collection     string            `json:"collection"`
		Limit          int               `json:"limit"`
		ScoreThreshold *float64          `json:"score_threshold"`
		Source         string            `json:"source"`
		Filters        map[string]string `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if req.Collection == "" {
		req.Collection = s.cfg.KnowledgeCollection
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.SearchLimit
	}
	threshold := s.cfg.ScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}

	results := s.store.Search(r.Context(), vectorstore.SearchParams{
		Query:          req.Query,
		Collection:     req.Collection,
		Limit:          req.Limit,
		ScoreThreshold: threshold,
		SourceFilter:   strings.TrimSpace(req.Source),
		Filters:        req.Filters,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"results":    results,
		"count":      len(results),
		"collection": req.Collection,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query          string            `json:"query"`
		Collection     string            `json:"collection"`
		MaxTokens      int               `json:"max_tokens"`
		Limit          int               `json:"limit"`
		ScoreThreshold *float64          `json:"score_threshold"`
		Filters        map[string]string `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if req.Collection == "" {
		req.Collection = s.cfg.KnowledgeCollection
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = s.cfg.ContextMaxTokens
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.SearchLimit
	}
	threshold := s.cfg.ScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}

	block := s.store.BuildContext(r.Context(), vectorstore.ContextParams{
		Query:          req.Query,
		Collection:     req.Collection,
		MaxTokens:      req.MaxTokens,
		Limit:          req.Limit,
		ScoreThreshold: threshold,
		Filters:        req.Filters,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"context":    block,
		"collection": req.Collection,
		"max_tokens": req.MaxTokens,
	})
}

func (s *Server) handleCollectionScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/collections/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "stats" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, s.store.CollectionInfo(r.Context(), parts[0]))
}

func (s *Server) startIndexWorkflow(ctx context.Context, documentID string, allowRestart bool) (tclient.WorkflowRun, error) {
	opts := tclient.StartWorkflowOptions{
		ID:        "index-" + documentID,
		TaskQueue: s.cfg.TemporalTaskQueue,
	}
	if allowRestart {
		opts.WorkflowIDReusePolicy = enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE
	}
	return s.temporal.ExecuteWorkflow(ctx, opts, workflows.DocumentIndexWorkflow, workflows.DocumentIndexInput{
		DocumentID:          documentID,
		KnowledgeCollection: s.cfg.KnowledgeCollection,
		CaseDocsCollection:  s.cfg.CaseDocsCollection,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "LR-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "LR-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "LR-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "LR-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "LR-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "LR-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "LR-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "LR-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "filename and file_url are required"):
			msg = "Both filename and file_url are required."
		case strings.Contains(low, "query is required"):
			msg = "A search query is required."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
