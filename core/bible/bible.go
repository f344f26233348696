// Package bible defines the normalized chapter record shared by the
// provider, cache, and lookup layers.
package bible

import (
	"fmt"
	"strings"
)

// Chapter is one Bible chapter's content normalized to a common shape
// regardless of which provider produced it.
type Chapter struct {
	Reference   string `json:"reference"`   // e.g. "John 3"
	Text        string `json:"text"`        // full chapter text
	Translation string `json:"translation"` // translation label, e.g. "web"
}

// Key builds the canonical cache key for a chapter. Keys are
// case-insensitive and whitespace-normalized so "John", "JOHN" and
// " john " address the same entry.
func Key(book string, chapter int, translation string) string {
	b := strings.ToLower(strings.Join(strings.Fields(book), " "))
	t := strings.ToLower(strings.TrimSpace(translation))
	return fmt.Sprintf("%s|%d|%s", b, chapter, t)
}
