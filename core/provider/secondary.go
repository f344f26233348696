package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/FocuswithJustin/CedarPulpit/core/bible"
	"github.com/FocuswithJustin/CedarPulpit/core/errors"
)

// DefaultSecondaryBaseURL is the production endpoint for the secondary source.
const DefaultSecondaryBaseURL = "https://api.scripture.cedarpulpit.dev/v2"

// Secondary fetches chapters from the secondary content source. Its API
// addresses books by a numeric ID from its own numbering scheme, and its
// responses carry only an array of verse objects which must be joined
// into chapter text.
type Secondary struct {
	baseURL string
	client  *http.Client
	codes   translationSet
}

// NewSecondary creates the secondary provider. A nil client uses a shared
// default; an empty baseURL uses the production endpoint.
func NewSecondary(client *http.Client, baseURL string) *Secondary {
	if client == nil {
		client = defaultHTTPClient
	}
	if baseURL == "" {
		baseURL = DefaultSecondaryBaseURL
	}
	return &Secondary{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		codes:   newTranslationSet("net", "nasb", "csb", "nkjv"),
	}
}

// Name implements ContentProvider.
func (p *Secondary) Name() string { return "secondary" }

// Supports implements ContentProvider.
func (p *Secondary) Supports(translation string) bool { return p.codes.contains(translation) }

// Translations implements ContentProvider.
func (p *Secondary) Translations() []string { return p.codes.list() }

// secondaryResponse is the secondary source's wire shape: no flat text
// field, verse objects only.
type secondaryResponse struct {
	BookName string `json:"book_name"`
	Chapter  int    `json:"chapter"`
	Verses   []struct {
		Verse int    `json:"verse"`
		Text  string `json:"text"`
	} `json:"verses"`
}

// FetchChapter implements ContentProvider.
func (p *Secondary) FetchChapter(ctx context.Context, book string, chapter int, translation string) (*bible.Chapter, error) {
	bookID, ok := p.bookID(book)
	if !ok {
		return nil, p.fail(book, chapter, translation,
			fmt.Errorf("book %q: %w", book, errors.ErrNotFound))
	}

	endpoint := fmt.Sprintf("%s/%s/%d/%d",
		p.baseURL, strings.ToLower(translation), bookID, chapter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, p.fail(book, chapter, translation, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, p.fail(book, chapter, translation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.fail(book, chapter, translation, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.fail(book, chapter, translation, err)
	}

	var parsed secondaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, p.fail(book, chapter, translation, fmt.Errorf("unparseable body: %w", err))
	}
	if len(parsed.Verses) == 0 {
		return nil, p.fail(book, chapter, translation, fmt.Errorf("empty body"))
	}

	// Join verse objects into "1 text 2 text ..." with a single space
	// separating verses.
	parts := make([]string, 0, len(parsed.Verses))
	for _, v := range parsed.Verses {
		parts = append(parts, fmt.Sprintf("%d %s", v.Verse, strings.TrimSpace(v.Text)))
	}

	name := parsed.BookName
	if name == "" {
		name = book
	}

	return &bible.Chapter{
		Reference:   fmt.Sprintf("%s %d", name, chapter),
		Text:        strings.Join(parts, " "),
		Translation: strings.ToLower(translation),
	}, nil
}

func (p *Secondary) fail(book string, chapter int, translation string, err error) error {
	return &errors.ProviderError{
		Source:      p.Name(),
		Book:        book,
		Chapter:     chapter,
		Translation: strings.ToLower(translation),
		Err:         err,
	}
}

// bookID resolves a book name to the secondary source's numeric book ID.
// The table is owned by this provider; it is this source's numbering
// scheme, not a display ordering.
func (p *Secondary) bookID(book string) (int, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(book), " "))
	id, ok := secondaryBookIDs[key]
	return id, ok
}

// secondaryBookIDs maps lowercase book names (and common variants) to the
// secondary source's book numbers (1-66, Protestant canon order).
var secondaryBookIDs = map[string]int{
	"genesis": 1, "exodus": 2, "leviticus": 3, "numbers": 4, "deuteronomy": 5,
	"joshua": 6, "judges": 7, "ruth": 8,
	"1 samuel": 9, "2 samuel": 10,
	"1 kings": 11, "2 kings": 12,
	"1 chronicles": 13, "2 chronicles": 14,
	"ezra": 15, "nehemiah": 16, "esther": 17, "job": 18,
	"psalm": 19, "psalms": 19,
	"proverbs": 20, "ecclesiastes": 21,
	"song of solomon": 22, "song of songs": 22,
	"isaiah": 23, "jeremiah": 24, "lamentations": 25, "ezekiel": 26, "daniel": 27,
	"hosea": 28, "joel": 29, "amos": 30, "obadiah": 31, "jonah": 32, "micah": 33,
	"nahum": 34, "habakkuk": 35, "zephaniah": 36, "haggai": 37, "zechariah": 38,
	"malachi": 39,
	"matthew": 40, "mark": 41, "luke": 42, "john": 43, "acts": 44, "romans": 45,
	"1 corinthians": 46, "2 corinthians": 47,
	"galatians": 48, "ephesians": 49, "philippians": 50, "colossians": 51,
	"1 thessalonians": 52, "2 thessalonians": 53,
	"1 timothy": 54, "2 timothy": 55,
	"titus": 56, "philemon": 57, "hebrews": 58, "james": 59,
	"1 peter": 60, "2 peter": 61,
	"1 john": 62, "2 john": 63, "3 john": 64,
	"jude": 65, "revelation": 66,
}
