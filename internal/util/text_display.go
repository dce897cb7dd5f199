package util

import (
	"strings"
	"unicode"
)

// DisplaySnippet trims a chunk down to a readable preview for API responses.
func DisplaySnippet(s string, maxRunes int) string {
	return trimClean(s, maxRunes)
}

func trimClean(s string, maxRunes int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	cut := runes[:maxRunes]
	// back up to the last word boundary so we never end mid-word
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimSpace(string(cut)) + "…"
}
