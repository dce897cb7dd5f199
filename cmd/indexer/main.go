package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lexrag/internal/chunker"
	"lexrag/internal/config"
	"lexrag/internal/parser"
	"lexrag/internal/providers"
	"lexrag/internal/storage"
	"lexrag/internal/util"
	"lexrag/internal/vectorstore"

	"github.com/joho/godotenv"
)

// minimum extracted characters before a file is worth indexing
const minTextChars = 50

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	dir := flag.String("dir", "./corpus", "directory of documents to index")
	collection := flag.String("collection", cfg.KnowledgeCollection, "target collection")
	chunkSize := flag.Int("chunk-size", 500, "chunk size in tokens")
	chunkOverlap := flag.Int("chunk-overlap", 75, "chunk overlap in tokens")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	pm, err := providers.NewManager(cfg.EmbedProviders, cfg.EmbedDim)
	if err != nil {
		log.Fatal(err)
	}
	store := vectorstore.NewStore(db, pm, cfg.EmbedDim)
	p := parser.New(cfg.ParseAPIKey, cfg.ParseBaseURL)
	c, err := chunker.New(*chunkSize, *chunkOverlap, chunker.DefaultCharsPerToken)
	if err != nil {
		log.Fatal(err)
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatal(err)
	}

	indexed, skipped, failed := 0, 0, 0
	totalChunks := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".pdf" && ext != ".docx" && ext != ".doc" && ext != ".txt" {
			continue
		}
		path := filepath.Join(*dir, name)

		text := p.Parse(ctx, path)
		if parser.Failed(text) || len(text) < minTextChars {
			log.Printf("skip %s: no usable text", name)
			skipped++
			continue
		}
		chunks := c.ChunkText(util.SanitizeText(text), name)
		if len(chunks) == 0 {
			log.Printf("skip %s: no chunks", name)
			skipped++
			continue
		}

		// drop any stale points from a previous run of the same file
		if _, err := store.DeleteBySource(ctx, name, *collection); err != nil {
			log.Printf("stale delete failed for %s: %v", name, err)
		}
		count, err := store.IndexChunks(ctx, chunks, name, *collection, nil)
		if err != nil {
			log.Printf("index %s failed: %v", name, err)
			failed++
			continue
		}
		log.Printf("indexed %s: %d chunks", name, count)
		indexed++
		totalChunks += count
	}

	stats := store.CollectionInfo(ctx, *collection)
	fmt.Printf("done: indexed=%d skipped=%d failed=%d chunks=%d collection=%s points=%d\n",
		indexed, skipped, failed, totalChunks, stats.Name, stats.PointsCount)
	if failed > 0 {
		os.Exit(1)
	}
}
