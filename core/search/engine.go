// Package search implements fuzzy, multi-field, weighted relevance
// search over the sermon library.
package search

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/FocuswithJustin/CedarPulpit/core/sermon"
)

// Field weights. Higher-weighted fields dominate the ranking.
const (
	weightTitle   = 10
	weightVerse   = 8
	weightSeries  = 7
	weightSpeaker = 5
	weightNotes   = 3
)

// fuzzyThreshold is the fixed similarity threshold: a term may differ
// from its target by at most floor(len * (1 - threshold)) edits.
const fuzzyThreshold = 0.8

// minFuzzyTermLength guards short tokens against false positives; terms
// below this length match exactly or not at all.
const minFuzzyTermLength = 3

// HistoryKey is the durable storage key for the search history blob.
const HistoryKey = "search-history"

// historySize bounds the persisted search history.
const historySize = 10

// Match types recorded per scoring branch.
const (
	MatchExact  = "exact"
	MatchFuzzy  = "fuzzy"
	MatchPrefix = "prefix"
)

// Match describes one term hitting one field.
type Match struct {
	Field string `json:"field"`
	Term  string `json:"term"`
	Type  string `json:"type"`
}

// Result is one ranked sermon.
type Result struct {
	Item      *sermon.Record `json:"item"`
	Relevance float64        `json:"relevance"`
	Matches   []Match        `json:"matches"`
}

// Options tune a search call.
type Options struct {
	// MinRelevance excludes results at or below this score. The default
	// of 0 means a result must score strictly above zero to appear
	// (except for the empty query, which returns everything).
	MinRelevance float64

	// Tag, when set, restricts results to records carrying the tag.
	// Tags are filtered, never scored.
	Tag string
}

// HistoryStore persists the bounded search history.
type HistoryStore interface {
	ReadBlob(key string) (data string, ok bool, err error)
	WriteBlob(key, data string) error
}

// field pairs a weight with an accessor; iterated in fixed order so
// scoring and match lists are deterministic.
type field struct {
	name   string
	weight float64
	value  func(*sermon.Record) string
}

var searchFields = []field{
	{"title", weightTitle, func(r *sermon.Record) string { return r.Title }},
	{"verseReference", weightVerse, func(r *sermon.Record) string { return r.VerseReference }},
	{"series", weightSeries, func(r *sermon.Record) string { return r.Series }},
	{"speaker", weightSpeaker, func(r *sermon.Record) string { return r.Speaker }},
	{"notes", weightNotes, func(r *sermon.Record) string { return r.Notes }},
}

// Engine scores sermons against queries and keeps a persisted,
// bounded, most-recent-first search history.
type Engine struct {
	store   HistoryStore
	history []string
}

// NewEngine creates a search engine. A nil store disables history
// persistence (history is still kept in memory).
func NewEngine(store HistoryStore) *Engine {
	e := &Engine{store: store}
	e.loadHistory()
	return e
}

// Search ranks the collection against the query. The empty query is the
// "show everything" case: every record with relevance 0, input order
// preserved. Every non-empty query is recorded in the search history.
func (e *Engine) Search(collection []*sermon.Record, query string, opts Options) []Result {
	terms := strings.Fields(strings.ToLower(query))

	if len(terms) == 0 {
		results := make([]Result, 0, len(collection))
		for _, r := range collection {
			if opts.Tag != "" && !r.HasTag(opts.Tag) {
				continue
			}
			results = append(results, Result{Item: r, Relevance: 0})
		}
		return results
	}

	e.recordQuery(strings.TrimSpace(query))

	results := make([]Result, 0, len(collection))
	for _, r := range collection {
		if opts.Tag != "" && !r.HasTag(opts.Tag) {
			continue
		}
		relevance, matches := scoreRecord(r, terms)
		if relevance <= opts.MinRelevance {
			continue
		}
		results = append(results, Result{Item: r, Relevance: relevance, Matches: matches})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	return results
}

// scoreRecord applies the scoring rule per term, per weighted field:
// exact substring occurrences score count*weight*2; otherwise a fuzzy
// hit scores weight; a field starting with the term adds weight again,
// independent of the branch taken.
func scoreRecord(r *sermon.Record, terms []string) (float64, []Match) {
	var relevance float64
	var matches []Match

	for _, term := range terms {
		for _, f := range searchFields {
			value := strings.ToLower(f.value(r))
			if value == "" {
				continue
			}

			if n := countOccurrences(value, term); n > 0 {
				relevance += float64(n) * f.weight * 2
				matches = append(matches, Match{Field: f.name, Term: term, Type: MatchExact})
			} else if fuzzyMatch(term, value, fuzzyThreshold) {
				relevance += f.weight
				matches = append(matches, Match{Field: f.name, Term: term, Type: MatchFuzzy})
			}

			if strings.HasPrefix(value, term) {
				relevance += f.weight
				matches = append(matches, Match{Field: f.name, Term: term, Type: MatchPrefix})
			}
		}
	}
	return relevance, matches
}

// countOccurrences counts non-overlapping occurrences of term in text.
// Both arguments are already lowercased.
func countOccurrences(text, term string) int {
	if term == "" {
		return 0
	}
	return strings.Count(text, term)
}

// fuzzyMatch reports whether term is found in text within the edit
// budget floor(len(term) * (1 - threshold)). The term is compared to
// every whitespace-delimited word no more than 2 characters shorter
// than the term, and to every term-length window of such words,
// stopping at the first win. Terms shorter than 3 characters never
// fuzzy-match.
func fuzzyMatch(term, text string, threshold float64) bool {
	if len(term) < minFuzzyTermLength {
		return false
	}
	budget := int(math.Floor(float64(len(term))*(1-threshold) + 1e-9))

	for _, word := range strings.Fields(text) {
		if len(word) < len(term)-2 {
			continue
		}
		if editDistance(term, word) <= budget {
			return true
		}
		// Slide a term-length window over longer words.
		for i := 0; i+len(term) <= len(word); i++ {
			if editDistance(term, word[i:i+len(term)]) <= budget {
				return true
			}
		}
	}
	return false
}

// editDistance computes the edit distance between two strings:
// single-character insert, delete, and substitute, plus adjacent
// transposition ("fiath" -> "faith"), each at cost 1.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	rows := len(a) + 1
	cols := len(b) + 1
	d := make([][]int, rows)
	for i := range d {
		d[i] = make([]int, cols)
		d[i][0] = i
	}
	for j := 0; j < cols; j++ {
		d[0][j] = j
	}
	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d[i][j] = min3(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				if t := d[i-2][j-2] + 1; t < d[i][j] {
					d[i][j] = t
				}
			}
		}
	}
	return d[rows-1][cols-1]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Highlight wraps every occurrence of every query term in <mark> tags,
// case-insensitively. Terms are applied independently as global
// replaces, so later terms may re-wrap earlier markers; that is the
// documented behavior, not a defect.
func Highlight(text, query string) string {
	for _, term := range strings.Fields(query) {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(term))
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "<mark>$0</mark>")
	}
	return text
}

// History returns the recorded queries, most recent first.
func (e *Engine) History() []string {
	out := make([]string, len(e.history))
	copy(out, e.history)
	return out
}

// ClearHistory wipes the recorded queries.
func (e *Engine) ClearHistory() {
	e.history = nil
	e.persistHistory()
}

// recordQuery prepends a query to the history, de-duplicated and
// bounded, and persists the result.
func (e *Engine) recordQuery(query string) {
	if query == "" {
		return
	}
	for i, q := range e.history {
		if q == query {
			e.history = append(e.history[:i], e.history[i+1:]...)
			break
		}
	}
	e.history = append([]string{query}, e.history...)
	if len(e.history) > historySize {
		e.history = e.history[:historySize]
	}
	e.persistHistory()
}

func (e *Engine) loadHistory() {
	if e.store == nil {
		return
	}
	data, ok, err := e.store.ReadBlob(HistoryKey)
	if err != nil || !ok {
		return
	}
	var history []string
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return
	}
	if len(history) > historySize {
		history = history[:historySize]
	}
	e.history = history
}

func (e *Engine) persistHistory() {
	if e.store == nil {
		return
	}
	data, err := json.Marshal(e.history)
	if err != nil {
		return
	}
	// History persistence is best-effort; a failed write never fails a search.
	_ = e.store.WriteBlob(HistoryKey, string(data))
}
