package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"lexrag/internal/chunker"
	"lexrag/internal/models"
	"lexrag/internal/providers"
	"lexrag/internal/storage"
	"lexrag/internal/util"
)

// upsertBatchSize bounds the number of points written per round-trip.
const upsertBatchSize = 100

// typeDocument is the fixed payload type tag carried by every point.
const typeDocument = "document"

var collectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,46}$`)

// Store owns the vector tables and the embedding provider. Collections map
// to lazily created pgvector tables; each collection is an isolated
// namespace with its own indexes. Construct one Store at process startup and
// share it: the pool and embedder are safe for concurrent use, and collection
// initialization is memoized behind a mutex.
type Store struct {
	db       *storage.DB
	embedder providers.EmbeddingProvider
	dim      int

	mu    sync.Mutex
	ready map[string]struct{}
}

func NewStore(db *storage.DB, embedder providers.EmbeddingProvider, dim int) *Store {
	return &Store{
		db:       db,
		embedder: embedder,
		dim:      dim,
		ready:    map[string]struct{}{},
	}
}

// collectionTable maps a collection name to its table name, rejecting
// anything that cannot be safely interpolated as an identifier.
func collectionTable(collection string) (string, error) {
	if !collectionNameRe.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return "rag_" + collection, nil
}

// EnsureCollection creates the collection's table and payload indexes if
// absent. Safe to call concurrently; repeated calls are O(1) after the first
// success. The DDL is idempotent, so a race between two processes is benign.
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ready[table]; ok {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id UUID PRIMARY KEY,
  embedding vector(%d) NOT NULL,
  content TEXT NOT NULL,
  source TEXT NOT NULL,
  doc_type TEXT NOT NULL DEFAULT 'document',
  chunk_index INT NOT NULL,
  payload JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, table, s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_source_idx ON %s (source)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_payload_idx ON %s USING GIN (payload)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure collection %s: %v", util.ErrStoreUnavailable, collection, err)
		}
	}

	s.ready[table] = struct{}{}
	log.Printf("initialized collection %s", collection)
	return nil
}

// IndexChunks embeds and upserts chunks into a collection. Every point gets
// a fresh uuid; there is no dedup against existing points, so callers that
// need replace-semantics must delete stale points first. Returns the number
// of points written.
func (s *Store) IndexChunks(ctx context.Context, chunks []chunker.Chunk, source, collection string, extra map[string]string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	table, err := collectionTable(collection)
	if err != nil {
		return 0, err
	}
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return 0, err
	}

	written := 0
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vecs, _, err := s.embedder.Embed(ctx, providers.EmbedRequest{Operation: "index", Inputs: texts, Dimension: s.dim})
		if err != nil {
			return written, fmt.Errorf("%w: %v", util.ErrEmbedFailed, err)
		}
		if len(vecs) != len(batch) {
			return written, fmt.Errorf("%w: got %d vectors for %d chunks", util.ErrEmbedFailed, len(vecs), len(batch))
		}

		tx, err := s.db.Pool.Begin(ctx)
		if err != nil {
			return written, fmt.Errorf("%w: begin upsert tx: %v", util.ErrStoreUnavailable, err)
		}
		for i, c := range batch {
			chunkSource := source
			if chunkSource == "" {
				chunkSource = c.Source
			}
			// source rides in the payload too so filter deletes can match it
			fields := make(map[string]string, len(extra)+1)
			for k, v := range extra {
				fields[k] = v
			}
			fields["source"] = chunkSource
			payload, err := marshalPayload(fields)
			if err != nil {
				_ = tx.Rollback(ctx)
				return written, err
			}
			_, err = tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, embedding, content, source, doc_type, chunk_index, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`, table),
				uuid.NewString(), pgvector.NewVector(vecs[i]), c.Content, chunkSource, typeDocument, c.Index, payload,
			)
			if err != nil {
				_ = tx.Rollback(ctx)
				return written, fmt.Errorf("%w: upsert point: %v", util.ErrStoreUnavailable, err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return written, fmt.Errorf("%w: commit upsert tx: %v", util.ErrStoreUnavailable, err)
		}
		written += len(batch)
	}

	log.Printf("indexed %d chunks from %s into %s", written, source, collection)
	return written, nil
}

// DeleteBySource removes all points whose source payload field matches
// exactly. Returns the number of points deleted.
func (s *Store) DeleteBySource(ctx context.Context, source, collection string) (int64, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return 0, err
	}
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return 0, err
	}
	tag, err := s.db.Pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE source=$1`, table), source)
	if err != nil {
		return 0, fmt.Errorf("%w: delete by source: %v", util.ErrStoreUnavailable, err)
	}
	log.Printf("deleted %d points for source=%s from %s", tag.RowsAffected(), source, collection)
	return tag.RowsAffected(), nil
}

// DeleteByFilter removes all points matching a conjunction of payload-field
// equality conditions. Refuses an empty filter: that would wipe the
// collection.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, filters map[string]string) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("delete by filter requires at least one condition")
	}
	table, err := collectionTable(collection)
	if err != nil {
		return 0, err
	}
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return 0, err
	}
	payload, err := marshalPayload(filters)
	if err != nil {
		return 0, err
	}
	tag, err := s.db.Pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE payload @> $1::jsonb`, table), payload)
	if err != nil {
		return 0, fmt.Errorf("%w: delete by filter: %v", util.ErrStoreUnavailable, err)
	}
	log.Printf("deleted %d points with filters=%v from %s", tag.RowsAffected(), filters, collection)
	return tag.RowsAffected(), nil
}

// CollectionInfo reports point counts and status. It degrades to zero-valued
// stats on any error so that monitoring never fails on a store outage.
func (s *Store) CollectionInfo(ctx context.Context, collection string) models.CollectionStats {
	zero := models.CollectionStats{Name: collection, Status: "unavailable"}
	table, err := collectionTable(collection)
	if err != nil {
		return zero
	}
	if err := s.EnsureCollection(ctx, collection); err != nil {
		log.Printf("collection info: %v", err)
		return zero
	}
	var count int64
	if err := s.db.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count); err != nil {
		log.Printf("collection info count failed for %s: %v", collection, err)
		return zero
	}
	// one vector per point in this store
	return models.CollectionStats{Name: collection, PointsCount: count, VectorsCount: count, Status: "ready"}
}

func marshalPayload(kv map[string]string) (string, error) {
	if len(kv) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(kv)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(b), nil
}
