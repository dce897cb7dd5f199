package providers

import "testing"

func TestResolveOllamaEmbedModel(t *testing.T) {
	if got := resolveOllamaEmbedModel("nomic"); got != "nomic-embed-text" {
		t.Fatalf("unexpected model for nomic alias: %s", got)
	}
	if got := resolveOllamaEmbedModel("all-minilm"); got != "all-minilm" {
		t.Fatalf("direct model name should pass through, got %s", got)
	}
	if got := resolveOllamaEmbedModel(""); got != "all-minilm" {
		t.Fatalf("unexpected default model: %s", got)
	}
}
