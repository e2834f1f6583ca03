package tenant

import (
	"strings"

	"go.uber.org/zap"
)

// Resolver maps tenant slugs from telephony headers to the canonical casing
// the dispatch backend expects. Unrecognized tenants pass through unchanged.
type Resolver struct {
	aliases map[string]string
}

// DefaultAliases covers the tenants the backend is known to serve.
func DefaultAliases() map[string]string {
	return map[string]string{
		"koach": "Koach",
	}
}

// NewResolver creates a tenant resolver. Alias keys are matched
// case-insensitively; values carry the canonical casing.
func NewResolver(aliases map[string]string) *Resolver {
	cleaned := make(map[string]string, len(aliases))
	for alias, canonical := range aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		canonical = strings.TrimSpace(canonical)
		if alias == "" || canonical == "" {
			continue
		}
		cleaned[alias] = canonical
	}
	return &Resolver{aliases: cleaned}
}

// Canonical returns the canonical tenant name for a slug.
func (r *Resolver) Canonical(slug string) string {
	cleaned := strings.TrimSpace(slug)
	if cleaned == "" {
		zap.L().Warn("tenant resolver received empty slug")
		return ""
	}
	if canonical, ok := r.aliases[strings.ToLower(cleaned)]; ok {
		return canonical
	}
	return cleaned
}

// ParseAliases decodes "alias=Canonical" pairs from configuration and merges
// them over the defaults.
func ParseAliases(pairs []string) map[string]string {
	aliases := DefaultAliases()
	for _, pair := range pairs {
		alias, canonical, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		alias = strings.ToLower(strings.TrimSpace(alias))
		canonical = strings.TrimSpace(canonical)
		if alias == "" || canonical == "" {
			continue
		}
		aliases[alias] = canonical
	}
	return aliases
}
