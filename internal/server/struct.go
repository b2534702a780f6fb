package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/localmind/localmind/internal/agent"
	"github.com/localmind/localmind/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for streaming answers.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives all server metrics. A fresh registry is created when
	// nil, so tests stay hermetic.
	Registry *prometheus.Registry
	// Provider and Model name the configured LLM backend for GET /api/status.
	Provider string
	Model    string
	// History is the optional answer log. Nil disables history.
	History store.AnswerLog
}

// answerer is the slice of the agent the answer handler needs.
// *agent.Agent satisfies it; tests inject a fake.
type answerer interface {
	Classify(ctx context.Context, query string) agent.Decision
	Answer(ctx context.Context, query string, opts *agent.Options) (*agent.Answer, error)
}

// documentAdder is the slice of the knowledge store the ingestion and status
// handlers need.
type documentAdder interface {
	AddDocuments(ctx context.Context, documents []string, metadatas []map[string]string) ([]string, error)
	Count(ctx context.Context) (uint64, error)
}

// webReporter exposes whether the web search backend holds a credential.
type webReporter interface {
	Configured() bool
}

// Server is the HTTP server exposing the answering agent.
type Server struct {
	// agent answers queries.
	agent answerer
	// knowledge serves document ingestion and the status count.
	knowledge documentAdder
	// web reports web-search availability for the status probe.
	web webReporter
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// registry is the metrics registry exposed at /metrics.
	registry *prometheus.Registry
	// metrics holds the server-owned Prometheus collectors.
	metrics *serverMetrics
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// answerRequest is the JSON body for POST /api/answer.
type answerRequest struct {
	// Query is the user's question.
	Query string `json:"query"`
	// Stream selects the SSE response instead of a single JSON body.
	Stream bool `json:"stream,omitempty"`
	// WebSearchOnly forces the Web decision, bypassing classification.
	WebSearchOnly bool `json:"webSearchOnly,omitempty"`
	// Model is accepted for interface compatibility; the configured model is
	// authoritative and a mismatch is logged, not honored.
	Model string `json:"model,omitempty"`
}

// answerResponse is the JSON body for a non-streaming POST /api/answer.
type answerResponse struct {
	Answer    string         `json:"answer"`
	Tool      agent.Decision `json:"tool"`
	RAGResult any            `json:"ragResult,omitempty"`
	WebResult any            `json:"webResult,omitempty"`
	Sources   []agent.Source `json:"sources"`
}

// documentsRequest is the JSON body for POST /api/documents.
type documentsRequest struct {
	// Documents is the list of raw texts to ingest.
	Documents []string `json:"documents"`
	// Metadatas is optional per-document metadata, parallel to Documents.
	Metadatas []map[string]string `json:"metadatas,omitempty"`
}

// documentsResponse is the JSON body returned by POST /api/documents.
type documentsResponse struct {
	Success        bool   `json:"success"`
	Added          int    `json:"added"`
	TotalDocuments uint64 `json:"totalDocuments"`
}

// statusResponse is the JSON body returned by GET /api/status.
type statusResponse struct {
	Documents           uint64 `json:"documents"`
	WebSearchConfigured bool   `json:"webSearchConfigured"`
	Provider            string `json:"provider"`
	Model               string `json:"model"`
	AnswersLogged       int64  `json:"answersLogged"`
}

// errorResponse is the JSON error body for non-streaming failures.
type errorResponse struct {
	Error string `json:"error"`
}
