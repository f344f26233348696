package search

import (
	"fmt"
	"strings"
	"testing"

	"github.com/FocuswithJustin/CedarPulpit/core/sermon"
)

type memHistoryStore struct {
	blobs map[string]string
}

func newMemHistoryStore() *memHistoryStore {
	return &memHistoryStore{blobs: make(map[string]string)}
}

func (s *memHistoryStore) ReadBlob(key string) (string, bool, error) {
	v, ok := s.blobs[key]
	return v, ok, nil
}

func (s *memHistoryStore) WriteBlob(key, data string) error {
	s.blobs[key] = data
	return nil
}

func library() []*sermon.Record {
	return []*sermon.Record{
		{ID: "1", Title: "Walking in Faith", Speaker: "John Piper", Series: "Hebrews", VerseReference: "Hebrews 11:1", Notes: "Faith is the assurance of things hoped for.", Tags: []string{"faith"}},
		{ID: "2", Title: "Grace Abounding", Speaker: "Charles Spurgeon", Series: "Romans", VerseReference: "Romans 5:20", Notes: "Where sin increased, grace abounded all the more."},
		{ID: "3", Title: "Love Never Fails", Speaker: "Dwight Moody", Series: "1 Corinthians", VerseReference: "1 Corinthians 13:4-8", Notes: "The greatest of these is love."},
	}
}

func TestSearch_EmptyQueryReturnsEverything(t *testing.T) {
	e := NewEngine(nil)
	col := library()
	results := e.Search(col, "", Options{})

	if len(results) != len(col) {
		t.Fatalf("got %d results; want %d", len(results), len(col))
	}
	for i, res := range results {
		if res.Item.ID != col[i].ID {
			t.Errorf("result %d = %s; input order not preserved", i, res.Item.ID)
		}
		if res.Relevance != 0 {
			t.Errorf("result %d relevance = %v; want 0", i, res.Relevance)
		}
		if len(res.Matches) != 0 {
			t.Errorf("result %d has %d matches; want none", i, len(res.Matches))
		}
	}
}

func TestSearch_ExactTitleScore(t *testing.T) {
	e := NewEngine(nil)
	col := []*sermon.Record{
		{ID: "1", Title: "Grace upon grace"},
	}
	results := e.Search(col, "grace", Options{})
	if len(results) != 1 {
		t.Fatalf("got %d results; want 1", len(results))
	}
	// Two occurrences in title: 2 * 10 * 2 = 40; prefix bonus: +10.
	if results[0].Relevance != 50 {
		t.Errorf("relevance = %v; want 50", results[0].Relevance)
	}
}

func TestSearch_MonotonicInExactCount(t *testing.T) {
	e := NewEngine(nil)
	once := &sermon.Record{ID: "once", Title: "The hope we carry"}
	twice := &sermon.Record{ID: "twice", Title: "The hope of hope"}
	results := e.Search([]*sermon.Record{once, twice}, "hope", Options{})

	if len(results) != 2 {
		t.Fatalf("got %d results; want 2", len(results))
	}
	if results[0].Item.ID != "twice" {
		t.Errorf("top result = %s; want the double-occurrence title", results[0].Item.ID)
	}
	if results[0].Relevance <= results[1].Relevance {
		t.Errorf("relevance %v not strictly greater than %v", results[0].Relevance, results[1].Relevance)
	}
}

func TestSearch_FieldWeightOrdering(t *testing.T) {
	e := NewEngine(nil)
	inTitle := &sermon.Record{ID: "title", Title: "covenant"}
	inNotes := &sermon.Record{ID: "notes", Notes: "covenant"}
	results := e.Search([]*sermon.Record{inNotes, inTitle}, "covenant", Options{})

	if len(results) != 2 {
		t.Fatalf("got %d results; want 2", len(results))
	}
	if results[0].Item.ID != "title" {
		t.Errorf("top result = %s; title (weight 10) should outrank notes (weight 3)", results[0].Item.ID)
	}
}

func TestSearch_DefaultMinRelevanceExcludesNonMatches(t *testing.T) {
	e := NewEngine(nil)
	results := e.Search(library(), "zerubbabel", Options{})
	if len(results) != 0 {
		t.Errorf("got %d results for a non-matching query; want 0", len(results))
	}
}

func TestSearch_FuzzyMatchScoresWeightOnly(t *testing.T) {
	e := NewEngine(nil)
	col := []*sermon.Record{
		{ID: "1", Title: "Sermon on faith"},
	}
	// "fiath" matches "faith" only fuzzily: weight 10, no doubling,
	// no prefix bonus.
	results := e.Search(col, "fiath", Options{})
	if len(results) != 1 {
		t.Fatalf("got %d results; want 1", len(results))
	}
	if results[0].Relevance != 10 {
		t.Errorf("relevance = %v; want 10", results[0].Relevance)
	}
	if len(results[0].Matches) != 1 || results[0].Matches[0].Type != MatchFuzzy {
		t.Errorf("matches = %+v; want one fuzzy match", results[0].Matches)
	}
}

func TestSearch_TagFilter(t *testing.T) {
	e := NewEngine(nil)
	results := e.Search(library(), "faith", Options{Tag: "faith"})
	for _, res := range results {
		if !res.Item.HasTag("faith") {
			t.Errorf("result %s lacks required tag", res.Item.ID)
		}
	}
	if len(results) == 0 {
		t.Error("tagged record should have matched")
	}
}

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		term string
		text string
		want bool
	}{
		{"fiath", "faith sermon", true}, // one swapped pair within budget
		{"hi", "history", false},        // below 3-character minimum
		{"grace", "grace", true},
		{"graze", "grace", true},      // one substitution
		{"sermon", "sermons", true},   // window over a longer word
		{"shepherd", "sheep", false},  // word too short
		{"xyzzy", "sermon", false},    // nowhere near
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_in_%s", tt.term, tt.text), func(t *testing.T) {
			if got := fuzzyMatch(tt.term, tt.text, fuzzyThreshold); got != tt.want {
				t.Errorf("fuzzyMatch(%q, %q) = %v; want %v", tt.term, tt.text, got, tt.want)
			}
		})
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"abc", "abcd", 1},
		{"fiath", "faith", 1}, // adjacent transposition
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d; want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestHighlight(t *testing.T) {
	got := Highlight("Faith comes by hearing", "faith hearing")
	if !strings.Contains(got, "<mark>Faith</mark>") {
		t.Errorf("case-insensitive match not wrapped: %q", got)
	}
	if !strings.Contains(got, "<mark>hearing</mark>") {
		t.Errorf("second term not wrapped: %q", got)
	}
}

func TestHighlight_LaterTermsMayRewrap(t *testing.T) {
	// Re-wrapping already-wrapped text is accepted behavior.
	got := Highlight("mark", "mark ark")
	if got == "mark" {
		t.Errorf("nothing wrapped: %q", got)
	}
}

func TestHistory_BoundedDedupedMostRecentFirst(t *testing.T) {
	store := newMemHistoryStore()
	e := NewEngine(store)
	col := library()

	for i := 0; i < 12; i++ {
		e.Search(col, fmt.Sprintf("query%d", i), Options{})
	}
	history := e.History()
	if len(history) != 10 {
		t.Fatalf("history length = %d; want 10", len(history))
	}
	if history[0] != "query11" {
		t.Errorf("history[0] = %q; want most recent first", history[0])
	}

	// Repeating a query moves it to the front without duplicating it.
	e.Search(col, "query5", Options{})
	history = e.History()
	if history[0] != "query5" {
		t.Errorf("history[0] = %q; want query5", history[0])
	}
	seen := 0
	for _, q := range history {
		if q == "query5" {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("query5 appears %d times; want 1", seen)
	}

	// Empty queries are never recorded.
	e.Search(col, "   ", Options{})
	if e.History()[0] != "query5" {
		t.Error("empty query polluted the history")
	}
}

func TestHistory_PersistsAcrossEngines(t *testing.T) {
	store := newMemHistoryStore()
	e1 := NewEngine(store)
	e1.Search(library(), "faith", Options{})

	e2 := NewEngine(store)
	history := e2.History()
	if len(history) != 1 || history[0] != "faith" {
		t.Errorf("restored history = %v; want [faith]", history)
	}
}
