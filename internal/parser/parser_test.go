package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailedRecognizesMarkers(t *testing.T) {
	require.True(t, Failed("[File not found: /tmp/x.pdf]"))
	require.True(t, Failed("[Failed to parse document: boom]"))
	require.False(t, Failed("ordinary extracted text"))
	require.False(t, Failed(""))
}

func TestParseMissingFileReturnsMarker(t *testing.T) {
	p := New("", "")
	out := p.Parse(context.Background(), "/nonexistent/doc.pdf")
	require.True(t, Failed(out))
	require.Contains(t, out, "File not found")
}

func TestParseUsesRemoteServiceWhenConfigured(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_ = json.NewEncoder(w).Encode(map[string]string{"markdown": "# Parsed\n\nservice output"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "claim.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644))

	p := New("test-key", srv.URL)
	out := p.Parse(context.Background(), path)
	require.Equal(t, "# Parsed\n\nservice output", out)
	require.Equal(t, "Bearer test-key", gotAuth)
}

func TestParseFallsBackWhenServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	// not a real PDF, so the local fallback fails too and reports the marker
	path := filepath.Join(t.TempDir(), "claim.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	p := New("test-key", srv.URL)
	out := p.Parse(context.Background(), path)
	require.True(t, Failed(out))
	require.Contains(t, out, "Failed to parse document")
}

func TestUnconfiguredServiceSkipsStraightToFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claim.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	p := New("", "")
	out := p.Parse(context.Background(), path)
	require.True(t, Failed(out))
}
