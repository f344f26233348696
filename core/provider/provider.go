// Package provider fetches Bible chapter content from external sources.
//
// Two providers are supported, each with a fixed, disjoint set of
// translation codes and its own response shape. Both normalize their
// responses to the shared bible.Chapter record. Provider selection by
// translation lives in Selector; providers themselves never fall back
// or retry across sources.
package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/CedarPulpit/core/bible"
)

// ContentProvider is one external chapter content source.
type ContentProvider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Supports reports whether the provider serves the given
	// translation code (case-insensitive).
	Supports(translation string) bool

	// Translations returns the supported translation codes.
	Translations() []string

	// FetchChapter retrieves one chapter and normalizes it.
	// All failure modes (network, HTTP status, unparseable body)
	// surface as *errors.ProviderError.
	FetchChapter(ctx context.Context, book string, chapter int, translation string) (*bible.Chapter, error)
}

// defaultHTTPClient is shared by providers constructed without an
// explicit client.
var defaultHTTPClient = &http.Client{Timeout: 15 * time.Second}

// translationSet is a case-insensitive membership set of translation codes.
type translationSet map[string]struct{}

func newTranslationSet(codes ...string) translationSet {
	s := make(translationSet, len(codes))
	for _, c := range codes {
		s[strings.ToLower(c)] = struct{}{}
	}
	return s
}

func (s translationSet) contains(code string) bool {
	_, ok := s[strings.ToLower(code)]
	return ok
}

func (s translationSet) list() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}
