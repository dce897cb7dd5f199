package util

import "strings"

// SanitizeText strips characters Postgres text columns reject, chiefly the
// NUL bytes PDF extractors leak into extracted text. Newlines, carriage
// returns and tabs survive; every other control rune is dropped.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	cleaned := strings.Map(func(ch rune) rune {
		switch ch {
		case '\n', '\r', '\t':
			return ch
		}
		if ch < 0x20 {
			return -1
		}
		return ch
	}, s)
	return strings.TrimSpace(cleaned)
}
