// Package reference parses human verse/chapter references like
// "John 3:16" or "1 Corinthians 13:4-7" into normalized components.
package reference

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Reference is a normalized scripture reference. VerseStart and VerseEnd
// are nil when the reference names a whole chapter or a single verse
// respectively.
type Reference struct {
	Book       string
	Chapter    int
	VerseStart *int
	VerseEnd   *int
}

// parsedReference is the participle grammar for a reference string.
// A book name may carry a leading ordinal ("1 Corinthians") and span
// multiple words ("Song of Solomon").
type parsedReference struct {
	Book       string `parser:"@Book"`
	Chapter    int    `parser:"@Number"`
	VerseStart *int   `parser:"( \":\" @Number"`
	VerseEnd   *int   `parser:"  ( \"-\" @Number )? )?"`
}

// referenceLexer tokenizes reference strings.
var referenceLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Book names: optional leading ordinal, one or more words, optional "of" joiner
	{Name: "Book", Pattern: `(?:\d\s*)?[A-Za-z]+(?:\s+(?:of\s+)?[A-Za-z]+)*`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Dash", Pattern: `-`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var referenceParser = participle.MustBuild[parsedReference](
	participle.Lexer(referenceLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a reference string. Supported formats:
//   - "John 3" (book chapter)
//   - "John 3:16" (book chapter:verse)
//   - "John 3:16-18" (verse range)
//   - "1 Corinthians 13:4-7" (ordinal multi-word book)
//
// Parse returns nil on malformed input; callers must treat nil as
// "cannot fetch", never as a fault.
func Parse(input string) *Reference {
	normalized := strings.Join(strings.Fields(input), " ")
	if normalized == "" {
		return nil
	}

	parsed, err := referenceParser.ParseString("", normalized)
	if err != nil {
		return nil
	}

	book := strings.Join(strings.Fields(parsed.Book), " ")
	if !validBookOrdinal(book) {
		return nil
	}

	if parsed.VerseEnd != nil && parsed.VerseStart != nil && *parsed.VerseEnd < *parsed.VerseStart {
		return nil
	}
	if parsed.Chapter < 1 {
		return nil
	}
	if parsed.VerseStart != nil && *parsed.VerseStart < 1 {
		return nil
	}

	return &Reference{
		Book:       book,
		Chapter:    parsed.Chapter,
		VerseStart: parsed.VerseStart,
		VerseEnd:   parsed.VerseEnd,
	}
}

// validBookOrdinal rejects book names with a leading numeral outside 1-3.
// "1 Corinthians" is a book; "7 Corinthians" is not.
func validBookOrdinal(book string) bool {
	if book == "" {
		return false
	}
	c := book[0]
	if c >= '0' && c <= '9' {
		return c >= '1' && c <= '3'
	}
	return true
}

// String returns the canonical string representation of the reference.
func (r *Reference) String() string {
	var sb strings.Builder
	sb.WriteString(r.Book)
	sb.WriteString(fmt.Sprintf(" %d", r.Chapter))
	if r.VerseStart != nil {
		sb.WriteString(fmt.Sprintf(":%d", *r.VerseStart))
		if r.VerseEnd != nil {
			sb.WriteString(fmt.Sprintf("-%d", *r.VerseEnd))
		}
	}
	return sb.String()
}

// IsRange returns true if this reference spans multiple verses.
func (r *Reference) IsRange() bool {
	return r.VerseEnd != nil
}

// IsChapterOnly returns true if this reference names a whole chapter.
func (r *Reference) IsChapterOnly() bool {
	return r.VerseStart == nil
}
