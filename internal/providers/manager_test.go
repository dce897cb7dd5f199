package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingProvider struct{}

func (failingProvider) Embed(context.Context, EmbedRequest) ([][]float32, ProviderInfo, error) {
	return nil, ProviderInfo{Name: "failing"}, errors.New("temporarily unavailable")
}

func TestManagerFailsOverToNextProvider(t *testing.T) {
	m := &Manager{embedProviders: []NamedEmbedProvider{
		{Ref: ProviderRef{Raw: "failing", Name: "failing"}, Provider: failingProvider{}},
		{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(8)},
	}}
	vecs, info, err := m.Embed(context.Background(), EmbedRequest{Operation: "test", Inputs: []string{"a", "b"}, Dimension: 8})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], 8)
}

func TestManagerReportsErrorWhenAllFail(t *testing.T) {
	m := &Manager{embedProviders: []NamedEmbedProvider{
		{Ref: ProviderRef{Raw: "failing", Name: "failing"}, Provider: failingProvider{}},
	}}
	_, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "all embed providers failed")
}

func TestMockEmbeddingsAreDeterministic(t *testing.T) {
	p := NewMockProvider(16)
	a, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"msme interest"}})
	require.NoError(t, err)
	b, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"msme interest"}})
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"something else"}})
	require.NoError(t, err)
	require.NotEqual(t, a[0], c[0])
}

func TestNewManagerRejectsUnknownProvider(t *testing.T) {
	_, err := NewManager("mock|nonsuch", 384)
	require.Error(t, err)
}

func TestNewManagerDefaultsToMock(t *testing.T) {
	m, err := NewManager("", 384)
	require.NoError(t, err)
	require.Equal(t, 1, m.EmbedCount())
	refs := m.EmbedProviderRefs()
	require.Len(t, refs, 1)
	require.Equal(t, "mock", refs[0].Name)
}
