package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name       string
		apiKey     string
		authHeader string
		wantStatus int
	}{
		{"disabled when key empty", "", "", http.StatusNoContent},
		{"missing token", "secret", "", http.StatusUnauthorized},
		{"wrong scheme", "secret", "Basic c2VjcmV0", http.StatusUnauthorized},
		{"wrong token", "secret", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "secret", "Bearer secret", http.StatusNoContent},
		{"case-insensitive scheme", "secret", "bearer secret", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := authMiddleware(tc.apiKey, ok)
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate challenge")
			}
		})
	}
}

func TestRateLimiterBurst(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rl, stop := newRateLimiter(0.001, 2, log)
	defer stop()

	for i := 0; i < 2; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request beyond burst allowed")
	}
	// A different client holds its own bucket.
	if !rl.allow("10.0.0.2") {
		t.Error("fresh client denied")
	}
}

type fakePinger struct {
	name string
	err  error
}

func (p *fakePinger) Name() string                 { return p.name }
func (p *fakePinger) Ping(_ context.Context) error { return p.err }

func TestReady(t *testing.T) {
	t.Parallel()

	t.Run("all healthy", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeAnswerer{}, nil, &Config{
			Pingers: []Pinger{&fakePinger{name: "qdrant"}, &fakePinger{name: "history"}},
		})
		req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("one failing dependency", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeAnswerer{}, nil, &Config{
			Pingers: []Pinger{
				&fakePinger{name: "qdrant"},
				&fakePinger{name: "ollama", err: errors.New("connection refused")},
			},
		})
		req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		body := rec.Body.String()
		for _, want := range []string{`"ready":false`, `"ollama"`, "connection refused"} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q: %s", want, body)
			}
		}
	})
}
