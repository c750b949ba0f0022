package engine

import (
	"fmt"
	"strings"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/retrieval"
)

// firstTurnSentinel stands in for the history block on the opening turn.
const firstTurnSentinel = "This is the first question in our conversation."

// previewLen caps the cited content preview at 200 characters.
const previewLen = 200

// FormatPassages renders retrieved passages into the context block
// embedded in the prompt. Passages keep their retrieval rank as a
// 1-based index; a missing page becomes "N/A".
func FormatPassages(passages []retrieval.Passage) string {
	formatted := make([]string, 0, len(passages))
	for i, p := range passages {
		page := p.Page
		if page == "" {
			page = "N/A"
		}
		source := p.Source
		if source == "" {
			source = "Unknown"
		}
		formatted = append(formatted, fmt.Sprintf(
			"[Document %d]\nSource: %s\nPage: %s\nContent: %s\n",
			i+1, source, page, p.Text,
		))
	}
	return strings.Join(formatted, "\n")
}

// FormatHistory renders prior turns as "Role: content" lines with the
// role capitalized. Empty history yields the first-turn sentinel.
func FormatHistory(history []ChatMessage) string {
	if len(history) == 0 {
		return firstTurnSentinel
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(msg.Role), msg.Content))
	}
	return strings.Join(lines, "\n")
}

// Preview returns the first 200 characters of a passage followed by an
// ellipsis marker.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) > previewLen {
		runes = runes[:previewLen]
	}
	return string(runes) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
