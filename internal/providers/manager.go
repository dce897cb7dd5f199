package providers

import (
	"context"
	"fmt"
	"log"
	"strings"
)

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager holds the configured embedding providers and embeds with
// sequential failover across them. Construct once per process; the provider
// handles are reused for the process lifetime.
type Manager struct {
	embedProviders []NamedEmbedProvider
}

func NewManager(providerList string, dim int) (*Manager, error) {
	refs := ParseProviderList(providerList)

	m := &Manager{}
	for _, ref := range refs {
		p, err := buildProvider(ref, dim)
		if err != nil {
			return nil, err
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: p})
	}
	if len(m.embedProviders) == 0 {
		m.embedProviders = []NamedEmbedProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(dim)}}
	}
	return m, nil
}

// Embed tries each provider in preferred order until one succeeds. Mock
// providers sort last so a configured real provider always gets first shot.
func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	var lastErr error
	var lastInfo ProviderInfo
	for _, i := range m.preferredOrder() {
		p := m.embedProviders[i]
		vecs, info, err := p.Provider.Embed(ctx, req)
		if err == nil {
			return vecs, info, nil
		}
		log.Printf("embed provider %s failed (%s): %v", p.Ref.Raw, ClassifyError(err), err)
		lastErr, lastInfo = err, info
	}
	return nil, lastInfo, fmt.Errorf("all embed providers failed: %w", lastErr)
}

func (m *Manager) EmbedCount() int {
	return len(m.embedProviders)
}

func (m *Manager) EmbedProviderRefs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.embedProviders))
	for i := range m.embedProviders {
		out = append(out, m.embedProviders[i].Ref)
	}
	return out
}

func (m *Manager) preferredOrder() []int {
	n := len(m.embedProviders)
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if strings.ToLower(m.embedProviders[i].Ref.Name) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if strings.ToLower(m.embedProviders[i].Ref.Name) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, dim int) (EmbeddingProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported embed provider: %s", ref.Name)
	}
}
