package util

import "errors"

var (
	ErrParseFailed       = errors.New("document parse failed")
	ErrNoChunksGenerated = errors.New("no chunks generated from document")
	ErrEmbedFailed       = errors.New("embedding provider failed")
	ErrStoreUnavailable  = errors.New("vector store unavailable")
)

// Truncate caps s at max bytes; status records keep short error strings.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
