// Package lookup composes the reference parser, provider selector, and
// chapter cache into the chapter lookup flow the UI drives.
package lookup

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/CedarPulpit/core/bible"
	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/core/provider"
	"github.com/FocuswithJustin/CedarPulpit/core/reference"
	"github.com/FocuswithJustin/CedarPulpit/internal/logging"
)

// ChapterCache is the local cache the service reads through.
type ChapterCache interface {
	Get(book string, chapter int, translation string) (*bible.Chapter, bool)
	Set(book string, chapter int, translation string, value *bible.Chapter) bool
}

// Result is one resolved lookup. Substituted reports that the requested
// translation was unavailable and the default was served instead;
// callers surface that, never hide it.
type Result struct {
	Chapter     *bible.Chapter       `json:"chapter"`
	Reference   *reference.Reference `json:"reference"`
	Translation string               `json:"translation"`
	Substituted bool                 `json:"substituted"`
	FromCache   bool                 `json:"from_cache"`
}

// Service resolves reference strings to chapter content. Concurrent
// lookups for the same uncached chapter are coalesced into a single
// provider fetch.
type Service struct {
	selector *provider.Selector
	cache    ChapterCache
	group    singleflight.Group
}

// NewService creates a lookup service.
func NewService(selector *provider.Selector, cache ChapterCache) *Service {
	return &Service{selector: selector, cache: cache}
}

// Lookup parses a reference string and resolves its chapter.
// A malformed reference is a validation error, not a fetch attempt.
func (s *Service) Lookup(ctx context.Context, ref, translation string) (*Result, error) {
	parsed := reference.Parse(ref)
	if parsed == nil {
		return nil, errors.NewValidation("reference", "not a recognizable verse or chapter reference")
	}
	return s.LookupChapter(ctx, parsed, translation)
}

// LookupChapter resolves an already-parsed reference: cache first, then
// the selected provider, writing fresh content back through the cache.
func (s *Service) LookupChapter(ctx context.Context, ref *reference.Reference, translation string) (*Result, error) {
	sel := s.selector.Select(translation)
	if sel.Substituted {
		logging.Warn("translation unavailable, using fallback",
			"requested", translation, "fallback", sel.Translation)
	}

	if ch, ok := s.cache.Get(ref.Book, ref.Chapter, sel.Translation); ok {
		return &Result{
			Chapter:     ch,
			Reference:   ref,
			Translation: sel.Translation,
			Substituted: sel.Substituted,
			FromCache:   true,
		}, nil
	}

	key := bible.Key(ref.Book, ref.Chapter, sel.Translation)
	v, err, _ := s.group.Do(key, func() (any, error) {
		ch, err := sel.Provider.FetchChapter(ctx, ref.Book, ref.Chapter, sel.Translation)
		if err != nil {
			return nil, err
		}
		if !s.cache.Set(ref.Book, ref.Chapter, sel.Translation, ch) {
			logging.Warn("chapter cache persistence failed, serving from memory", "key", key)
		}
		return ch, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Chapter:     v.(*bible.Chapter),
		Reference:   ref,
		Translation: sel.Translation,
		Substituted: sel.Substituted,
	}, nil
}
