// Package websearch queries the Google Custom Search JSON API. It is the
// escalation backend the answer router falls through to when a document
// cannot answer a question.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotConfigured is returned when the API key or search engine ID is
// missing. Callers treat this as "web search unavailable", not a failure.
var ErrNotConfigured = errors.New("websearch: GOOGLE_SEARCH_API_KEY or GOOGLE_CSE_ID not set")

// DefaultNumResults is the number of snippets fetched per search.
const DefaultNumResults = 5

const defaultEndpoint = "https://www.googleapis.com/customsearch/v1"

const defaultTimeout = 10 * time.Second

// Snippet is one web search result.
type Snippet struct {
	Title   string
	URL     string
	Snippet string
}

// Client calls the Google Custom Search JSON API.
type Client struct {
	apiKey   string
	cseID    string
	endpoint string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a search client. The key and search engine ID may be empty;
// Search then fails with ErrNotConfigured, which lets callers construct the
// client unconditionally and decide at call time.
func New(apiKey, cseID string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		cseID:    cseID,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether both credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.cseID != ""
}

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search runs the query and returns up to DefaultNumResults snippets.
// An empty result set is returned as an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]Snippet, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cseID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(DefaultNumResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch: unexpected status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("websearch: failed to decode response: %w", err)
	}

	snippets := make([]Snippet, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		snippets = append(snippets, Snippet{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: strings.ReplaceAll(item.Snippet, "\n", ""),
		})
	}
	return snippets, nil
}

// Format renders snippets as a numbered source list for prompt context.
// An empty slice renders a fixed "no results" line.
func Format(snippets []Snippet) string {
	if len(snippets) == 0 {
		return "No relevant web search results found."
	}

	var b strings.Builder
	for i, s := range snippets {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := s.Title
		if title == "" {
			title = "No Title"
		}
		fmt.Fprintf(&b, "Source [%d]: %s (%s)\nSnippet: %s", i+1, title, s.URL, s.Snippet)
	}
	return b.String()
}
