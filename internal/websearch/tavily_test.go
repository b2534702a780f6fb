package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// stubResponse is a minimal successful Tavily payload.
const stubResponse = `{
	"answer": "Go 1.26 was released in early 2026.",
	"results": [
		{"title": "Go release notes", "url": "https://go.dev/doc", "content": "Release notes for Go.", "score": 0.93},
		{"title": "Go blog", "url": "https://go.dev/blog", "content": "Announcing the release.", "score": 0.7}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.APIKey = "tvly-test"
	cfg.BaseURL = srv.URL
	cfg.RateLimitCooldown = time.Millisecond
	return New(&cfg), srv
}

func TestSearchNormalizes(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.SearchDepth != "advanced" || !req.IncludeAnswer {
			t.Errorf("request not shaped as expected: %+v", req)
		}
		w.Write([]byte(stubResponse))
	}, Config{})

	res, err := c.Search(context.Background(), "latest go release")
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(res.Sources))
	}
	if res.Sources[0].Score != 93 {
		t.Errorf("score = %d, want 93 (integer percent)", res.Sources[0].Score)
	}
	if !strings.HasPrefix(res.Content, "AI Summary: Go 1.26") {
		t.Errorf("content should lead with the AI answer, got %q", res.Content)
	}
	if res.Answer == "" {
		t.Error("answer not carried through")
	}
}

func TestSearchTruncatesContent(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1000)
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"title": "t", "url": "u", "content": long, "score": 0.5}},
		})
	}, Config{})

	res, err := c.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(res.Sources[0].Content) != maxContentChars {
		t.Errorf("content length = %d, want %d", len(res.Sources[0].Content), maxContentChars)
	}
}

func TestSearchCacheFreshness(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(stubResponse))
	}, Config{CacheTTL: 100 * time.Millisecond})

	ctx := context.Background()
	if _, err := c.Search(ctx, "Go Release"); err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	// Same query modulo case/whitespace: must be served from cache.
	if _, err := c.Search(ctx, "  go release "); err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream called %d times within the window, want 1", n)
	}

	time.Sleep(150 * time.Millisecond)
	if _, err := c.Search(ctx, "go release"); err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("upstream called %d times after expiry, want 2", n)
	}
}

func TestSearchRateLimitRetryCeiling(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(stubResponse))
	}, Config{})

	res, err := c.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() should succeed on the third attempt: %v", err)
	}
	if len(res.Sources) == 0 {
		t.Error("successful retry returned no sources")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("made %d attempts, want exactly 3", n)
	}
}

func TestSearchRateLimitExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, Config{})

	_, err := c.Search(context.Background(), "q")
	if err == nil {
		t.Fatal("Search() should fail after exhausting the retry budget")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("made %d attempts, want exactly 3 (never more)", n)
	}
}

func TestSearchTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(stubResponse))
	}, Config{Timeout: 20 * time.Millisecond})

	_, err := c.Search(context.Background(), "q")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Search() error = %v, want ErrTimeout", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("made %d attempts, want 2 (one retry on timeout)", n)
	}
}

func TestSearchErrorCarriesStatusAndBody(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key"))
	}, Config{})

	_, err := c.Search(context.Background(), "q")
	if err == nil {
		t.Fatal("Search() should fail on non-2xx")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error should carry status and body, got: %v", err)
	}
}

func TestConfigured(t *testing.T) {
	t.Parallel()

	if New(&Config{}).Configured() {
		t.Error("Configured() = true without an API key")
	}
	if !New(&Config{APIKey: "tvly-x"}).Configured() {
		t.Error("Configured() = false with an API key")
	}
}
