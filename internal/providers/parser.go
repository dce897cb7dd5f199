package providers

import "strings"

// ProviderRef is one entry from the LEXRAG_EMBED_PROVIDERS list. The list is
// pipe-separated; an entry is either a bare provider name ("mock") or
// "name:key_alias" ("openai:primary") where the alias selects the API key
// env var.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList never returns an empty slice: with no usable entries it
// falls back to the mock provider so the pipeline stays runnable offline.
func ParseProviderList(raw string) []ProviderRef {
	var out []ProviderRef
	for _, entry := range strings.Split(raw, "|") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, alias, found := strings.Cut(entry, ":")
		ref := ProviderRef{Raw: entry, Name: strings.TrimSpace(name)}
		if found {
			ref.KeyAlias = strings.TrimSpace(alias)
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		return []ProviderRef{{Raw: "mock", Name: "mock"}}
	}
	return out
}
