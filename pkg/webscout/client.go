// Package webscout provides clients for external web-search retrieval
// providers. Results feed the grounding subsystem; provider failures are
// the caller's to swallow, never the pipeline's to surface.
package webscout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Provider performs a web search and returns raw results.
type Provider interface {
	// Name identifies the provider in logs and source attribution.
	Name() string
	// Search runs one query. An empty result list is a valid outcome.
	Search(ctx context.Context, query string) ([]Result, error)
}

// Result is a single search hit.
type Result struct {
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
	Published string `json:"published,omitempty"`
}

// Option configures the HTTP search client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound queries per second.
func WithRateLimit(qps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(qps), 1)
	}
}

// WithMaxResults caps the number of results a search returns.
func WithMaxResults(n int) Option {
	return func(c *httpClient) {
		c.maxResults = n
	}
}

type httpClient struct {
	name       string
	apiKey     string
	baseURL    string
	maxResults int
	limiter    *rate.Limiter
	http       *http.Client
}

// NewClient creates a search client for a JSON search API endpoint.
// The provider is expected to answer GET {base}/search?q=... with a
// {"results": [...]} body.
func NewClient(name, apiKey, baseURL string, opts ...Option) Provider {
	c := &httpClient{
		name:       name,
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: 10,
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Name() string {
	return c.name
}

type searchResponse struct {
	Results []Result `json:"results"`
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "webscout: %s rate limit wait", c.name)
	}

	u := fmt.Sprintf("%s/search?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), c.maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "webscout: %s create request", c.name)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "webscout: %s search", c.name)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrapf(err, "webscout: %s read body", c.name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("webscout: %s search returned status %d", c.name, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrapf(err, "webscout: %s parse response", c.name)
	}

	results := parsed.Results
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}
	return results, nil
}
