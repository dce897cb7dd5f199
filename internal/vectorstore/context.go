package vectorstore

import (
	"context"
	"strings"

	"lexrag/internal/models"
)

// tokens are approximated at four characters apiece, matching the chunker
const charsPerToken = 4

// defaultScoreThreshold keeps weak matches out of packed context when the
// caller does not set one.
const defaultScoreThreshold = 0.3

type ContextParams struct {
	Query          string            `json:"query"`
	Collection     string            `json:"collection"`
	MaxTokens      int               `json:"max_tokens"`
	Limit          int               `json:"limit"`
	ScoreThreshold float64           `json:"score_threshold,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
}

// BuildContext runs a search and greedily packs the top results under the
// token budget into a single heading-prefixed block ready for prompt
// injection. Returns an empty string when nothing fits.
func (s *Store) BuildContext(ctx context.Context, p ContextParams) string {
	if p.MaxTokens <= 0 {
		return ""
	}
	results := s.Search(ctx, contextSearchParams(p))
	limit := p.Limit
	if limit <= 0 {
		limit = 5
	}
	return packContext(results, limit, p.MaxTokens*charsPerToken, headingForCollection(p.Collection))
}

// contextSearchParams maps the context request onto a search: overfetch 2x
// the pack limit and hold results to the score threshold, defaulting rather
// than letting an unset threshold admit every non-negative match.
func contextSearchParams(p ContextParams) SearchParams {
	limit := p.Limit
	if limit <= 0 {
		limit = 5
	}
	threshold := p.ScoreThreshold
	if threshold <= 0 {
		threshold = defaultScoreThreshold
	}
	return SearchParams{
		Query:          p.Query,
		Collection:     p.Collection,
		Limit:          limit * 2,
		ScoreThreshold: threshold,
		Filters:        p.Filters,
	}
}

// packContext accumulates result contents in rank order, stopping before the
// first one that would exceed the character budget.
func packContext(results []models.SearchResult, limit, maxChars int, heading string) string {
	if limit > len(results) {
		limit = len(results)
	}
	parts := make([]string, 0, limit)
	total := 0
	for _, r := range results[:limit] {
		if total+len(r.Content) > maxChars {
			break
		}
		parts = append(parts, r.Content)
		total += len(r.Content)
	}
	if len(parts) == 0 {
		return ""
	}
	return heading + "\n" + strings.Join(parts, "\n\n---\n\n")
}

// headingForCollection turns a collection name into its context block
// heading, e.g. "case_documents" -> "## Case Documents".
func headingForCollection(collection string) string {
	words := strings.Split(collection, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return "## " + strings.Join(words, " ")
}
