package watch

import (
	"strings"

	"github.com/hay-kot/steward/internal/core/item"
)

// Keyword vocabularies for priority classification. High wins over medium;
// a provider-native importance flag wins over both (see the email watcher).
var (
	highKeywords = []string{
		"urgent", "asap", "critical", "important", "priority", "action required",
	}
	mediumKeywords = []string{
		"invoice", "payment", "review", "request", "meeting",
	}
)

// ClassifyPriority assigns a priority from free text. The first matching
// vocabulary wins; text with no keyword hits is low priority.
func ClassifyPriority(texts ...string) item.Priority {
	joined := strings.ToLower(strings.Join(texts, " "))
	for _, kw := range highKeywords {
		if strings.Contains(joined, kw) {
			return item.PriorityHigh
		}
	}
	for _, kw := range mediumKeywords {
		if strings.Contains(joined, kw) {
			return item.PriorityMedium
		}
	}
	return item.PriorityLow
}

// SanitizeName converts an arbitrary filename or title into a vault-safe
// document name. Path separators and shell-hostile characters are replaced
// so a crafted name can never escape the target area.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
