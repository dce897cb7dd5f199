package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultCharsPerToken is the chars-per-token approximation used in place of
// a real tokenizer.
const DefaultCharsPerToken = 4

// Chunk is one contiguous span of cleaned text, sized for embedding.
// StartChar/EndChar are offsets into the cleaned text, not the raw input.
type Chunk struct {
	Content    string `json:"content"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	Index      int    `json:"index"`
	Source     string `json:"source"`
	TokenCount int    `json:"token_count"`
}

// Chunker splits text into overlapping chunks at content-aware boundaries.
// It is pure and safe for concurrent use.
type Chunker struct {
	chunkChars    int
	overlapChars  int
	charsPerToken int
}

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(` {2,}`)
)

// sentence terminators, checked in priority order
var sentenceBreaks = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// New builds a Chunker targeting chunkSize tokens per chunk with
// chunkOverlap tokens of overlap, using charsPerToken as the token
// approximation ratio. Malformed sizes are a caller error.
func New(chunkSize, chunkOverlap, charsPerToken int) (*Chunker, error) {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}
	return &Chunker{
		chunkChars:    chunkSize * charsPerToken,
		overlapChars:  chunkOverlap * charsPerToken,
		charsPerToken: charsPerToken,
	}, nil
}

// ChunkText splits text into overlapping chunks. Empty or whitespace-only
// input yields an empty slice. The source label is carried through to each
// chunk verbatim.
func (c *Chunker) ChunkText(text, source string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = cleanText(text)
	chunks := make([]Chunk, 0, len(text)/c.chunkChars+1)
	start := 0

	for start < len(text) {
		end := start + c.chunkChars
		if end < len(text) {
			end = c.findBreakPoint(text, start, end)
		} else {
			end = len(text)
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				Content:    content,
				StartChar:  start,
				EndChar:    end,
				Index:      len(chunks),
				Source:     source,
				TokenCount: len(content) / c.charsPerToken,
			})
		}

		prevStart := 0
		if len(chunks) > 0 {
			prevStart = chunks[len(chunks)-1].StartChar
		}
		start = end - c.overlapChars
		// Guard against a non-advancing window when the break point landed
		// inside the overlap: jump past it instead of looping.
		if start <= prevStart {
			start = end
		}
	}

	return chunks
}

func cleanText(text string) string {
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = multiSpace.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}

// findBreakPoint searches backward from end for a natural boundary:
// a paragraph break past the window midpoint, then a sentence terminator,
// then a bare newline, then a space past 70% of the window. A raw mid-word
// cut is the last resort.
func (c *Chunker) findBreakPoint(text string, start, end int) int {
	window := text[start:end]
	mid := len(window) / 2

	if para := strings.LastIndex(window, "\n\n"); para > mid {
		return start + para + 2
	}

	for _, punct := range sentenceBreaks {
		if sent := strings.LastIndex(window, punct); sent > mid {
			return start + sent + len(punct)
		}
	}

	if nl := strings.LastIndex(window, "\n"); nl > mid {
		return start + nl + 1
	}

	if sp := strings.LastIndex(window, " "); sp > len(window)*7/10 {
		return start + sp + 1
	}

	// raw cut: keep the boundary on a whole rune
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	// invalid byte runs can back all the way off; the window must advance
	if end == start {
		end = start + 1
	}
	return end
}
