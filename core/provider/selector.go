package provider

import "strings"

// DefaultTranslation is the documented fallback when a requested
// translation is supported by neither provider.
const DefaultTranslation = "web"

// Selection is the result of resolving a translation to a provider.
// Substituted is true when the requested translation was unavailable
// and the default was chosen instead; callers surface this to the user
// rather than substituting silently.
type Selection struct {
	Provider    ContentProvider
	Translation string
	Substituted bool
}

// Selector picks the content provider for a requested translation.
// Pure decision logic over two static capability sets; no I/O.
type Selector struct {
	primary   ContentProvider
	secondary ContentProvider
	fallback  string
}

// NewSelector creates a selector. An empty fallback uses DefaultTranslation.
func NewSelector(primary, secondary ContentProvider, fallback string) *Selector {
	if fallback == "" {
		fallback = DefaultTranslation
	}
	return &Selector{primary: primary, secondary: secondary, fallback: strings.ToLower(fallback)}
}

// Select resolves a translation code to a provider. Precedence: the
// secondary provider wins when it supports the code, then the primary,
// then the primary with the fallback translation (flagged).
func (s *Selector) Select(translation string) Selection {
	code := strings.ToLower(strings.TrimSpace(translation))
	if s.secondary.Supports(code) {
		return Selection{Provider: s.secondary, Translation: code}
	}
	if s.primary.Supports(code) {
		return Selection{Provider: s.primary, Translation: code}
	}
	return Selection{Provider: s.primary, Translation: s.fallback, Substituted: true}
}
