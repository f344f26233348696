package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/FocuswithJustin/CedarPulpit/core/bible"
	"github.com/FocuswithJustin/CedarPulpit/core/errors"
)

// DefaultPrimaryBaseURL is the production endpoint for the primary source.
const DefaultPrimaryBaseURL = "https://bible-api.com"

// Primary fetches chapters from the primary content source. Its responses
// carry a flat full-chapter text field alongside a verse array; the flat
// field is used directly.
type Primary struct {
	baseURL string
	client  *http.Client
	codes   translationSet
}

// NewPrimary creates the primary provider. A nil client uses a shared
// default with a 15s timeout; an empty baseURL uses the production endpoint.
func NewPrimary(client *http.Client, baseURL string) *Primary {
	if client == nil {
		client = defaultHTTPClient
	}
	if baseURL == "" {
		baseURL = DefaultPrimaryBaseURL
	}
	return &Primary{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		codes:   newTranslationSet("web", "kjv", "asv", "bbe", "ylt", "darby"),
	}
}

// Name implements ContentProvider.
func (p *Primary) Name() string { return "primary" }

// Supports implements ContentProvider.
func (p *Primary) Supports(translation string) bool { return p.codes.contains(translation) }

// Translations implements ContentProvider.
func (p *Primary) Translations() []string { return p.codes.list() }

// primaryResponse is the primary source's wire shape.
type primaryResponse struct {
	Reference       string `json:"reference"`
	Text            string `json:"text"`
	TranslationID   string `json:"translation_id"`
	TranslationName string `json:"translation_name"`
	Verses          []struct {
		Verse int    `json:"verse"`
		Text  string `json:"text"`
	} `json:"verses"`
}

// FetchChapter implements ContentProvider.
func (p *Primary) FetchChapter(ctx context.Context, book string, chapter int, translation string) (*bible.Chapter, error) {
	ref := fmt.Sprintf("%s %d", book, chapter)
	endpoint := fmt.Sprintf("%s/%s?translation=%s",
		p.baseURL, url.PathEscape(ref), url.QueryEscape(strings.ToLower(translation)))

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, p.fail(book, chapter, translation, err)
	}

	var resp primaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, p.fail(book, chapter, translation, fmt.Errorf("unparseable body: %w", err))
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		// Some translations omit the flat field; join the verse array.
		parts := make([]string, 0, len(resp.Verses))
		for _, v := range resp.Verses {
			parts = append(parts, fmt.Sprintf("%d %s", v.Verse, strings.TrimSpace(v.Text)))
		}
		text = strings.Join(parts, " ")
	}
	if text == "" {
		return nil, p.fail(book, chapter, translation, fmt.Errorf("empty body"))
	}

	reference := resp.Reference
	if reference == "" {
		reference = ref
	}
	label := resp.TranslationID
	if label == "" {
		label = strings.ToLower(translation)
	}

	return &bible.Chapter{
		Reference:   reference,
		Text:        text,
		Translation: label,
	}, nil
}

func (p *Primary) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *Primary) fail(book string, chapter int, translation string, err error) error {
	return &errors.ProviderError{
		Source:      p.Name(),
		Book:        book,
		Chapter:     chapter,
		Translation: strings.ToLower(translation),
		Err:         err,
	}
}
