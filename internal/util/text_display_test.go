package util

import "testing"

func TestDisplaySnippetCollapsesWhitespace(t *testing.T) {
	in := "a  b\n\nc\td"
	if out := DisplaySnippet(in, 0); out != "a b c d" {
		t.Fatalf("unexpected snippet: %q", out)
	}
}

func TestDisplaySnippetTrimsAtWordBoundary(t *testing.T) {
	in := "alpha beta gamma delta"
	out := DisplaySnippet(in, 12)
	if out != "alpha beta…" {
		t.Fatalf("unexpected snippet: %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected truncate: %q", got)
	}
	if got := Truncate("ab", 3); got != "ab" {
		t.Fatalf("short string must pass through, got %q", got)
	}
}
