// Package search queries the Serper web search API and exposes the
// results as an agent tool.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tezansahu/career-mentor-agent/internal/log"
)

// DefaultBaseURL is the Serper API endpoint.
const DefaultBaseURL = "https://google.serper.dev"

const requestTimeout = 30 * time.Second

// Result is a single organic search result.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Response is the subset of the Serper payload we use.
type Response struct {
	AnswerBox *AnswerBox `json:"answerBox,omitempty"`
	Organic   []Result   `json:"organic"`
}

// AnswerBox is Serper's featured answer, when present.
type AnswerBox struct {
	Title   string `json:"title"`
	Answer  string `json:"answer"`
	Snippet string `json:"snippet"`
}

// Client performs searches against the Serper API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Serper client. Panics if logger is nil to catch
// wiring errors at startup.
func NewClient(apiKey string, logger log.Logger, opts ...Option) *Client {
	if logger == nil {
		panic("search: logger is required")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search performs one search request. No retries, no caching: a failed
// call returns an error and the caller decides how to surface it.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	payload, err := json.Marshal(map[string]string{
		"q":  query,
		"gl": "in",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error: %d - %s", resp.StatusCode, string(body))
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	c.logger.Debug("search completed", "query", query, "results", len(parsed.Organic))
	return &parsed, nil
}

// FormatMarkdown renders the response as a markdown list for the model.
func (r *Response) FormatMarkdown() string {
	var b bytes.Buffer

	if box := r.AnswerBox; box != nil {
		answer := box.Answer
		if answer == "" {
			answer = box.Snippet
		}
		if answer != "" {
			if box.Title != "" {
				fmt.Fprintf(&b, "%s: %s\n\n", box.Title, answer)
			} else {
				fmt.Fprintf(&b, "%s\n\n", answer)
			}
		}
	}

	for _, res := range r.Organic {
		if res.Title == "" || res.Link == "" {
			continue
		}
		fmt.Fprintf(&b, "- [%s](%s)", res.Title, res.Link)
		if res.Snippet != "" {
			fmt.Fprintf(&b, " - %s", res.Snippet)
		}
		b.WriteString("\n")
	}

	out := strings.TrimRight(b.String(), "\n")
	if out == "" {
		return "No results found."
	}
	return out
}
