// Package websearch implements the live web retrieval backend on top of the
// Tavily search API: request shaping, a time-boxed response cache, a bounded
// retry policy for rate limits and timeouts, and normalization of the API's
// results into attributable sources.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/localmind/localmind/internal/cache"
)

// ErrTimeout indicates the search API did not respond within the configured
// deadline, after the retry budget was exhausted.
var ErrTimeout = errors.New("websearch: web search timed out — the search service may be slow or unreachable")

const (
	// defaultBaseURL is the Tavily API endpoint.
	defaultBaseURL = "https://api.tavily.com"

	// maxContentChars caps each normalized source's content. Web snippets
	// beyond this add prompt weight without adding grounding value.
	maxContentChars = 400

	// maxRateLimitRetries bounds 429 retries (at most 3 total attempts).
	maxRateLimitRetries = 2

	// maxTimeoutRetries bounds timeout retries.
	maxTimeoutRetries = 1
)

// Source is a normalized web search hit.
type Source struct {
	// Title is the page title reported by the search API.
	Title string `json:"title"`
	// URL is the page address.
	URL string `json:"url"`
	// Content is the page excerpt, truncated to maxContentChars.
	Content string `json:"content"`
	// Score is the relevance as an integer percentage (0–100).
	Score int `json:"score"`
}

// Result is a completed web search: the renderable content block, the
// normalized sources, and the API's AI-generated summary when present.
type Result struct {
	// Content leads with the AI summary (when present) followed by an
	// enumerated, scored source listing.
	Content string `json:"content"`
	// Sources lists the normalized hits.
	Sources []Source `json:"sources"`
	// Answer is the API's AI-generated summary, possibly empty.
	Answer string `json:"answer,omitempty"`
}

// Config holds the settings for constructing a Client.
type Config struct {
	// APIKey is the Tavily API key. Empty means web search is unconfigured.
	APIKey string
	// BaseURL overrides the API endpoint. Defaults to the Tavily API.
	BaseURL string
	// MaxResults bounds the number of results requested. Defaults to 5.
	MaxResults int
	// Timeout bounds each request attempt. Defaults to 10s.
	Timeout time.Duration
	// CacheTTL is the result freshness window. Defaults to 15m.
	CacheTTL time.Duration
	// CacheSize bounds the number of cached results. Defaults to 1024.
	CacheSize int
	// RateLimitCooldown is the pause before retrying after HTTP 429.
	// Defaults to 2s.
	RateLimitCooldown time.Duration
}

// Client queries the Tavily search API with caching and bounded retries.
// It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	timeout    time.Duration
	cooldown   time.Duration
	cache      *cache.Cache[*Result]
	httpClient *http.Client
}

// New constructs a Client from the given config.
func New(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	cooldown := cfg.RateLimitCooldown
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		timeout:    timeout,
		cooldown:   cooldown,
		cache:      cache.New[*Result](cfg.CacheSize, ttl),
		httpClient: &http.Client{},
	}
}

// Configured reports whether a search credential is present. The status probe
// exposes this so callers know why web retrieval is unavailable.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// tavilyRequest is the JSON body sent to the Tavily /search endpoint.
type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

// tavilyResponse is the JSON body returned from the Tavily /search endpoint.
type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search returns web results for query, serving from the cache when a fresh
// entry exists. On HTTP 429 it cools down and retries up to twice; on timeout
// it retries once, then surfaces ErrTimeout.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("websearch: no API key configured — set TAVILY_API_KEY")
	}

	key := normalizeQuery(query)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	result, err := c.search(ctx, query, 0, 0)
	if err != nil {
		return nil, err
	}

	c.cache.Put(key, result)
	return result, nil
}

// search performs one attempt and recurses with incremented retry counters on
// the two retryable failure kinds.
func (c *Client) search(ctx context.Context, query string, rateRetries, timeoutRetries int) (*Result, error) {
	payload, err := json.Marshal(tavilyRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "advanced",
		MaxResults:    c.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("websearch: marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("websearch: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Caller cancellation is not a timeout and is never retried.
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			if timeoutRetries < maxTimeoutRetries {
				return c.search(ctx, query, rateRetries, timeoutRetries+1)
			}
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("websearch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if rateRetries < maxRateLimitRetries {
			select {
			case <-time.After(c.cooldown):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return c.search(ctx, query, rateRetries+1, timeoutRetries)
		}
		return nil, fmt.Errorf("websearch: rate limited after %d attempts", maxRateLimitRetries+1)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("websearch: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("websearch: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("websearch: decode response (HTTP %d): %w", resp.StatusCode, err)
	}

	return normalize(&parsed), nil
}

// normalize converts the raw API response into a Result.
func normalize(resp *tavilyResponse) *Result {
	sources := make([]Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		content := r.Content
		if len(content) > maxContentChars {
			content = content[:maxContentChars]
		}
		sources = append(sources, Source{
			Title:   r.Title,
			URL:     r.URL,
			Content: content,
			Score:   int(r.Score * 100),
		})
	}

	var sb strings.Builder
	if resp.Answer != "" {
		fmt.Fprintf(&sb, "AI Summary: %s\n\n", resp.Answer)
	}
	if len(sources) > 0 {
		sb.WriteString("Web Results:\n")
		for i, s := range sources {
			fmt.Fprintf(&sb, "%d. %s (relevance: %d%%)\n%s\n%s\n\n", i+1, s.Title, s.Score, s.Content, s.URL)
		}
	}

	return &Result{
		Content: strings.TrimRight(sb.String(), "\n"),
		Sources: sources,
		Answer:  resp.Answer,
	}
}

// normalizeQuery derives the cache key: lowercased, surrounding whitespace
// trimmed.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
