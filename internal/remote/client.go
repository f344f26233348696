// Package remote implements the HTTP client side of sermon sync,
// speaking to a Cedar Pulpit API server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/core/sermon"
	"github.com/FocuswithJustin/CedarPulpit/core/sync"
)

// Client talks to the sermon sync API. It implements sync.RemoteStore.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithAPIKey authenticates requests with a static API key.
func WithAPIKey(key string) Option {
	return func(cl *Client) { cl.apiKey = key }
}

// WithBearerToken authenticates requests with a bearer token.
func WithBearerToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// NewClient creates a sync client for the given server base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// sermonBody is the JSON body for create and update requests.
type sermonBody struct {
	Title          string   `json:"title"`
	Speaker        string   `json:"speaker,omitempty"`
	Series         string   `json:"series,omitempty"`
	VerseReference string   `json:"verse_reference,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Date           string   `json:"date,omitempty"`
}

// List fetches one page of the remote sermon collection.
func (c *Client) List(ctx context.Context, page, pageSize int) (*sync.Page, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("page_size", fmt.Sprint(pageSize))

	var out struct {
		Items      []*sync.RemoteRecord `json:"items"`
		TotalPages int                  `json:"total_pages"`
	}
	if err := c.do(ctx, http.MethodGet, "/sermons?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &sync.Page{Items: out.Items, TotalPages: out.TotalPages}, nil
}

// Create uploads a new sermon and returns its remote representation.
func (c *Client) Create(ctx context.Context, r *sermon.Record) (*sync.RemoteRecord, error) {
	var out sync.RemoteRecord
	if err := c.do(ctx, http.MethodPost, "/sermons", recordBody(r), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an existing remote sermon's fields.
func (c *Client) Update(ctx context.Context, remoteID string, r *sermon.Record) (*sync.RemoteRecord, error) {
	var out sync.RemoteRecord
	if err := c.do(ctx, http.MethodPut, "/sermons/"+url.PathEscape(remoteID), recordBody(r), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func recordBody(r *sermon.Record) *sermonBody {
	return &sermonBody{
		Title:          r.Title,
		Speaker:        r.Speaker,
		Series:         r.Series,
		VerseReference: r.VerseReference,
		Notes:          r.Notes,
		Tags:           r.Tags,
		Date:           r.Date,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrapf(err, "decoding response from %s %s", method, path)
	}

	if !env.Success {
		code, message := "UNKNOWN", "request failed"
		if env.Error != nil {
			code, message = env.Error.Code, env.Error.Message
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errors.NewNotFound("sermon", message)
		case http.StatusUnauthorized:
			return errors.Wrapf(errors.ErrUnauthorized, "%s", message)
		case http.StatusBadRequest:
			return errors.NewValidation("", message)
		default:
			return fmt.Errorf("server error %s (%d): %s", code, resp.StatusCode, message)
		}
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrapf(err, "decoding %s %s payload", method, path)
		}
	}
	return nil
}
