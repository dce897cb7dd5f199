package main

import (
	"log"
	"net/http"

	"lexrag/internal/api"
	"lexrag/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	h := api.NewServer(cfg)
	log.Printf("lexrag api listening on %s embed_providers=%q", cfg.APIAddr, cfg.EmbedProviders)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
