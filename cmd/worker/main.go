package main

import (
	"context"
	"log"
	"time"

	"lexrag/internal/activities"
	"lexrag/internal/config"
	"lexrag/internal/parser"
	"lexrag/internal/providers"
	"lexrag/internal/storage"
	"lexrag/internal/vectorstore"
	"lexrag/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := storage.NewDocumentRepo(db).EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}
	pm, err := providers.NewManager(cfg.EmbedProviders, cfg.EmbedDim)
	if err != nil {
		log.Fatal(err)
	}
	store := vectorstore.NewStore(db, pm, cfg.EmbedDim)
	a := activities.New(cfg, db, store, parser.New(cfg.ParseAPIKey, cfg.ParseBaseURL))
	activities.Register(w, a)

	log.Printf("lexrag worker listening on %s queue=%s embed_providers=%q", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.EmbedProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
