package filter

import (
	"strings"

	"github.com/sentinel-ops/log-sentinel/pkg/signature"
)

// Filter classifies aggregated log entries as suspicious or not against an
// immutable signature store. It holds no mutable state and is safe for
// concurrent use.
type Filter struct {
	store *signature.Store
}

// New creates a filter over the given store.
func New(store *signature.Store) *Filter {
	return &Filter{store: store}
}

// IsSuspicious reports whether the entry should be sent for classification.
// Checks run in a fixed order and the first hit wins.
func (f *Filter) IsSuspicious(entry string) bool {
	if f.store.MatchExact(entry) {
		return true
	}

	upper := strings.ToUpper(entry)
	if f.store.MatchCaseInsensitive(upper) {
		return true
	}

	if f.store.MatchRegex(entry) {
		return true
	}

	// Markup injection: an opening bracket next to a script-capable tag name.
	if strings.Contains(entry, "<") &&
		(strings.Contains(entry, "SCRIPT") || strings.Contains(entry, "IMG") || strings.Contains(entry, "SVG")) {
		return true
	}

	// SQL injection: comment or quote characters combined with a boolean or
	// SELECT clause.
	if strings.Contains(entry, "'") || strings.Contains(entry, "--") || strings.Contains(entry, "/*") {
		if strings.Contains(entry, " OR ") || strings.Contains(entry, " AND ") || strings.Contains(entry, "SELECT") {
			return true
		}
	}

	return f.store.MatchErrorCode(upper)
}
