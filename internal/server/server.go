// Package server implements the HTTP server that exposes the answering agent
// via a REST/SSE API. The server is started by the `localmind serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/localmind/localmind/internal/agent"
	"github.com/localmind/localmind/internal/llm"
	"github.com/localmind/localmind/internal/logging"
	"github.com/localmind/localmind/internal/store"
)

// New constructs a Server from the provided agent, knowledge store, web
// reporter, and config.
func New(ag answerer, knowledge documentAdder, web webReporter, cfg *Config) (*Server, error) {
	if ag == nil {
		return nil, fmt.Errorf("server: agent must not be nil")
	}
	if knowledge == nil {
		return nil, fmt.Errorf("server: knowledge store must not be nil")
	}
	if web == nil {
		return nil, fmt.Errorf("server: web reporter must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		agent:     ag,
		knowledge: knowledge,
		web:       web,
		cfg:       cfg,
		log:       log,
		registry:  registry,
		metrics:   newServerMetrics(registry),
		pingers:   cfg.Pingers,
	}

	if cfg.APIKey == "" {
		log.Warn("server: LOCALMIND_API_KEY not set — API authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /api/answer", authMiddleware(cfg.APIKey, rl.limit(http.HandlerFunc(s.handleAnswer))))
	mux.Handle("POST /api/documents", authMiddleware(cfg.APIKey, http.HandlerFunc(s.handleDocuments)))
	mux.Handle("GET /api/status", authMiddleware(cfg.APIKey, http.HandlerFunc(s.handleStatus)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.requestLogger(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("localmind server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAnswer handles POST /api/answer, streaming over SSE when requested.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}
	log := logging.FromContext(r.Context())
	if req.Model != "" && req.Model != s.cfg.Model {
		log.Debug("answer: ignoring requested model override",
			slog.String("requested", req.Model), slog.String("configured", s.cfg.Model))
	}

	if req.Stream {
		s.streamAnswer(w, r, &req)
		return
	}

	start := time.Now()
	ans, err := s.agent.Answer(r.Context(), req.Query, &agent.Options{WebOnly: req.WebSearchOnly})
	if err != nil {
		s.finishAnswer(r.Context(), outcomeFor(r.Context(), err), start)
		if r.Context().Err() != nil {
			// Caller went away; nobody is listening for a response.
			log.Debug("answer: request canceled by caller")
			return
		}
		log.Error("answer failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.toolDecisionsTotal.WithLabelValues(string(ans.Tool)).Inc()
	s.finishAnswer(r.Context(), "ok", start)
	s.logHistory(r.Context(), req.Query, ans)

	w.Header().Set("Content-Type", "application/json")
	resp := answerResponse{
		Answer:  ans.Answer,
		Tool:    ans.Tool,
		Sources: ans.Sources,
	}
	if ans.RAGResult != nil {
		resp.RAGResult = ans.RAGResult
	}
	if ans.WebResult != nil {
		resp.WebResult = ans.WebResult
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("answer encode error", slog.Any("error", err))
	}
}

// streamAnswer drives the SSE frame sequence:
// tool → progress* → sources → message* → done | error.
func (s *Server) streamAnswer(w http.ResponseWriter, r *http.Request, req *answerRequest) {
	log := logging.FromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s.metrics.answerActiveStreams.Inc()
	defer s.metrics.answerActiveStreams.Dec()
	start := time.Now()

	sw := &sseWriter{w: w, flusher: flusher}

	// Classification runs before Answer so the tool frame leads the stream.
	// Answer re-resolves the same decision from the cache.
	var decision agent.Decision
	if req.WebSearchOnly {
		decision = agent.DecisionWeb
	} else {
		decision = s.agent.Classify(r.Context(), req.Query)
	}
	s.metrics.toolDecisionsTotal.WithLabelValues(string(decision)).Inc()
	sw.writeEvent("tool", map[string]any{"tool": decision})

	ans, err := s.agent.Answer(r.Context(), req.Query, &agent.Options{
		WebOnly: req.WebSearchOnly,
		OnProgress: func(status string, details ...string) {
			frame := map[string]any{"status": status}
			if len(details) > 0 {
				frame["details"] = details
			}
			sw.writeEvent("progress", frame)
		},
		OnSources: func(sources []agent.Source) {
			sw.writeEvent("sources", map[string]any{"sources": sources})
		},
		OnToken: func(token string) {
			sw.writeEvent("message", map[string]any{"content": token})
		},
	})
	if err != nil {
		s.finishAnswer(r.Context(), outcomeFor(r.Context(), err), start)
		if r.Context().Err() != nil {
			// Cancellation is not a failure; emit no error frame.
			log.Debug("answer stream: canceled by caller")
			return
		}
		log.Error("answer stream failed", slog.Any("error", err))
		sw.writeEvent("error", map[string]any{"error": err.Error()})
		return
	}

	s.finishAnswer(r.Context(), "ok", start)
	s.logHistory(r.Context(), req.Query, ans)
	sw.writeEvent("done", map[string]any{"done": true})
}

// handleDocuments handles POST /api/documents.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	var req documentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		writeJSONError(w, http.StatusBadRequest, "documents is required")
		return
	}
	if req.Metadatas != nil && len(req.Metadatas) != len(req.Documents) {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("metadatas length %d does not match documents length %d", len(req.Metadatas), len(req.Documents)))
		return
	}

	log := logging.FromContext(r.Context())
	ids, err := s.knowledge.AddDocuments(r.Context(), req.Documents, req.Metadatas)
	if err != nil {
		log.Error("document ingestion failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	total, err := s.knowledge.Count(r.Context())
	if err != nil {
		log.Warn("document count failed after ingestion", slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(documentsResponse{
		Success:        true,
		Added:          len(ids),
		TotalDocuments: total,
	})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	count, err := s.knowledge.Count(r.Context())
	if err != nil {
		log.Warn("status: document count failed", slog.Any("error", err))
	}

	var logged int64
	if s.cfg.History != nil {
		if n, err := s.cfg.History.Count(r.Context()); err == nil {
			logged = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		Documents:           count,
		WebSearchConfigured: s.web.Configured(),
		Provider:            s.cfg.Provider,
		Model:               s.cfg.Model,
		AnswersLogged:       logged,
	})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// logHistory appends the completed answer to the history log. Non-fatal.
func (s *Server) logHistory(ctx context.Context, query string, ans *agent.Answer) {
	if s.cfg.History == nil {
		return
	}
	err := s.cfg.History.Append(context.WithoutCancel(ctx), store.Entry{
		Query:    query,
		Tool:     string(ans.Tool),
		Answer:   ans.Answer,
		Duration: ans.Duration,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("history append failed", slog.Any("error", err))
	}
}

// finishAnswer records the outcome metrics for one answer request.
func (s *Server) finishAnswer(_ context.Context, outcome string, start time.Time) {
	s.metrics.answerRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.answerDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// outcomeFor maps an answer error onto a metrics outcome label.
func outcomeFor(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "canceled"
	case errors.Is(err, llm.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// writeJSONError sends a JSON error body with the given status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
