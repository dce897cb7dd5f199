package vectorstore

import (
	"context"
	"fmt"
	"log"

	"github.com/pgvector/pgvector-go"

	"lexrag/internal/models"
	"lexrag/internal/providers"
	"lexrag/internal/util"
)

const snippetRunes = 420

type SearchParams struct {
	Query          string            `json:"query"`
	Collection     string            `json:"collection"`
	Limit          int               `json:"limit"`
	ScoreThreshold float64           `json:"score_threshold"`
	SourceFilter   string            `json:"source,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
}

// Search embeds the query and returns matches above the score threshold,
// best first. Search is best-effort: any underlying failure degrades to an
// empty result list so a broken store never crashes a read path.
func (s *Store) Search(ctx context.Context, p SearchParams) []models.SearchResult {
	results, err := s.search(ctx, p)
	if err != nil {
		log.Printf("search error in %s: %v", p.Collection, err)
		return []models.SearchResult{}
	}
	return results
}

func (s *Store) search(ctx context.Context, p SearchParams) ([]models.SearchResult, error) {
	table, err := collectionTable(p.Collection)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx, p.Collection); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 5
	}

	vecs, _, err := s.embedder.Embed(ctx, providers.EmbedRequest{Operation: "search", Inputs: []string{p.Query}, Dimension: s.dim})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrEmbedFailed, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d query vectors", util.ErrEmbedFailed, len(vecs))
	}

	args := []any{pgvector.NewVector(vecs[0]), p.ScoreThreshold, p.Limit}
	filterSQL, filterArgs, err := buildFilterClause(p.SourceFilter, p.Filters, len(args))
	if err != nil {
		return nil, err
	}
	args = append(args, filterArgs...)

	query := fmt.Sprintf(`
SELECT id::text, content, source, chunk_index, 1 - (embedding <=> $1) AS score
FROM %s
WHERE doc_type = 'document'
  AND 1 - (embedding <=> $1) >= $2`+filterSQL+`
ORDER BY embedding <=> $1
LIMIT $3`, table)

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query similarity search: %v", util.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0, p.Limit)
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.Content, &r.Source, &r.ChunkIndex, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Snippet = util.DisplaySnippet(r.Content, snippetRunes)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

// buildFilterClause renders the optional source and payload conditions as
// "AND ..." SQL appended to the base search query. startArg is the number of
// placeholders already used.
func buildFilterClause(source string, filters map[string]string, startArg int) (string, []any, error) {
	sql := ""
	args := make([]any, 0, 2)
	if source != "" {
		args = append(args, source)
		sql += fmt.Sprintf("\n  AND source = $%d", startArg+len(args))
	}
	if len(filters) > 0 {
		payload, err := marshalPayload(filters)
		if err != nil {
			return "", nil, err
		}
		args = append(args, payload)
		sql += fmt.Sprintf("\n  AND payload @> $%d::jsonb", startArg+len(args))
	}
	return sql, args, nil
}
