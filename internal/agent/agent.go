// Package agent implements the retrieval orchestrator: it classifies each
// query into a tool decision, fans out to the local knowledge base and/or the
// web search backend, merges their results into a grounded context, and
// drives the generation client to produce the final answer while reporting
// progress to the caller.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/localmind/localmind/internal/budget"
	"github.com/localmind/localmind/internal/cache"
	"github.com/localmind/localmind/internal/logging"
	"github.com/localmind/localmind/internal/rag"
	"github.com/localmind/localmind/internal/websearch"
)

// answerTemperature allows natural phrasing in the final answer while the
// grounding instructions stay strict.
const answerTemperature = 0.7

// answerPromptTemplate embeds the grounding instructions, the merged
// retrieval context, and the user's query.
const answerPromptTemplate = `You are a knowledgeable assistant answering from retrieved context.

Instructions:
- Answer ONLY from the context below. Do not invent facts.
- If the context is insufficient to answer, say so honestly.
- Cite which sources support your statements.
- If sources conflict, point out the conflict instead of papering over it.
- Keep a professional, direct tone.

Context:
%s

Question: %s`

// generator is the slice of the llm client the agent needs. Narrow so tests
// can substitute fakes.
type generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
	Stream(ctx context.Context, prompt string, temperature float32, onToken func(token string)) (string, error)
}

// localSearcher is the slice of the knowledge store the agent needs.
type localSearcher interface {
	Search(ctx context.Context, query string) (*rag.SearchResult, error)
}

// webSearcher is the slice of the web search client the agent needs.
type webSearcher interface {
	Search(ctx context.Context, query string) (*websearch.Result, error)
}

// Source is a retrieval result normalized across backends, tagged with its
// origin for attribution.
type Source struct {
	// Type is "local" or "web".
	Type string `json:"type"`
	// Title is the page title (web sources only).
	Title string `json:"title,omitempty"`
	// URL is the page address (web sources only).
	URL string `json:"url,omitempty"`
	// Content is the retrieved text fragment.
	Content string `json:"content"`
	// Metadata is the stored document metadata (local sources only).
	Metadata map[string]string `json:"metadata,omitempty"`
	// Score is the similarity (local, 0–1) or relevance percent (web, 0–100).
	Score float64 `json:"score,omitempty"`
}

// Answer is the assembled output of one answering run.
type Answer struct {
	// Answer is the generated text with scaffold labels stripped.
	Answer string `json:"answer"`
	// Tool is the decision that drove retrieval.
	Tool Decision `json:"tool"`
	// RAGResult is the raw local search outcome, when local ran and succeeded.
	RAGResult *rag.SearchResult `json:"ragResult,omitempty"`
	// WebResult is the raw web search outcome, when web ran and succeeded.
	WebResult *websearch.Result `json:"webResult,omitempty"`
	// Sources merges both backends' sources, tagged by origin.
	Sources []Source `json:"sources"`
	// Duration is the wall time of the full pipeline.
	Duration time.Duration `json:"-"`
}

// Options adjusts a single Answer call.
type Options struct {
	// WebOnly forces the Web decision, bypassing classification.
	WebOnly bool
	// OnProgress is invoked at phase transitions. Fire-and-forget: a panic
	// inside the callback is swallowed, and callers must not assume a fixed
	// invocation count or total ordering between the two backends' events.
	OnProgress func(status string, details ...string)
	// OnToken receives answer chunks as they stream from the model. Nil means
	// blocking generation.
	OnToken func(token string)
	// OnSources receives the merged source list once retrieval has settled,
	// before generation starts. Streaming transports use it to emit sources
	// ahead of the first answer chunk.
	OnSources func(sources []Source)
}

// Config holds the dependencies for constructing an Agent.
type Config struct {
	// Generator produces the final answer.
	Generator generator
	// Classifier produces tool decisions. May be the same client as
	// Generator, or a smaller model.
	Classifier generator
	// Knowledge is the local retrieval backend.
	Knowledge localSearcher
	// Web is the live retrieval backend.
	Web webSearcher
	// DecisionCacheSize bounds the classification cache. Defaults to 1024.
	DecisionCacheSize int
	// MaxContextTokens clamps the merged retrieval context. Defaults to
	// budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Agent is the retrieval orchestrator. It is safe for concurrent use.
type Agent struct {
	generator        generator
	classifier       generator
	knowledge        localSearcher
	web              webSearcher
	decisions        *cache.Cache[Decision]
	maxContextTokens int
}

// New constructs an Agent from the provided Config.
func New(cfg *Config) (*Agent, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("agent: Generator must not be nil")
	}
	if cfg.Knowledge == nil {
		return nil, fmt.Errorf("agent: Knowledge must not be nil")
	}
	if cfg.Web == nil {
		return nil, fmt.Errorf("agent: Web must not be nil")
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = cfg.Generator
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	return &Agent{
		generator:        cfg.Generator,
		classifier:       classifier,
		knowledge:        cfg.Knowledge,
		web:              cfg.Web,
		decisions:        cache.New[Decision](cfg.DecisionCacheSize, 0),
		maxContextTokens: maxCtx,
	}, nil
}

// Answer drives the full retrieval-then-generation pipeline for query.
//
// Single-backend decisions propagate their backend's failure. In Both mode
// the two searches run concurrently and settle independently — one side
// failing leaves a failure notice in the context instead of aborting; only
// both sides failing ends the request. Generation failure is always fatal.
func (a *Agent) Answer(ctx context.Context, query string, opts *Options) (*Answer, error) {
	if opts == nil {
		opts = &Options{}
	}
	start := time.Now()
	progress := progressFunc(ctx, opts.OnProgress)

	var decision Decision
	if opts.WebOnly {
		decision = DecisionWeb
		progress("Web search forced by request")
	} else {
		progress("Classifying query...")
		decision = a.Classify(ctx, query)
	}
	progress("Tool selected", string(decision))

	result := &Answer{Tool: decision}
	var contextText string

	switch decision {
	case DecisionLocal:
		progress("Searching local knowledge base...")
		ragRes, err := a.knowledge.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("agent: local search failed: %w", err)
		}
		progress("Local search complete", fmt.Sprintf("%d sources", len(ragRes.Sources)))
		result.RAGResult = ragRes
		result.Sources = localSources(ragRes)
		contextText = ragRes.Content

	case DecisionWeb:
		progress("Searching the web...")
		webRes, err := a.web.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("agent: web search failed: %w", err)
		}
		progress("Web search complete", fmt.Sprintf("%d sources", len(webRes.Sources)))
		result.WebResult = webRes
		result.Sources = webSources(webRes)
		contextText = webRes.Content

	case DecisionBoth:
		text, err := a.searchBoth(ctx, query, progress, result)
		if err != nil {
			return nil, err
		}
		contextText = text
	}

	if opts.OnSources != nil {
		opts.OnSources(result.Sources)
	}

	progress("Generating answer...")
	prompt := fmt.Sprintf(answerPromptTemplate, budget.Clamp(contextText, a.maxContextTokens), query)

	var raw string
	var err error
	if opts.OnToken != nil {
		scrubber := newAnswerScrubber(opts.OnToken)
		raw, err = a.generator.Stream(ctx, prompt, answerTemperature, scrubber.Feed)
		if err == nil {
			scrubber.Flush()
		}
	} else {
		raw, err = a.generator.Generate(ctx, prompt, answerTemperature)
	}
	if err != nil {
		return nil, fmt.Errorf("agent: answer generation failed: %w", err)
	}

	result.Answer = stripScaffold(raw)
	result.Duration = time.Since(start)
	return result, nil
}

// searchBoth runs both backends concurrently with independent outcome capture
// and builds the two-section labeled context. A plain WaitGroup instead of an
// errgroup: one branch failing must never cancel its sibling.
func (a *Agent) searchBoth(ctx context.Context, query string, progress func(string, ...string), result *Answer) (string, error) {
	var (
		wg     sync.WaitGroup
		ragRes *rag.SearchResult
		ragErr error
		webRes *websearch.Result
		webErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		progress("Searching local knowledge base...")
		ragRes, ragErr = a.knowledge.Search(ctx, query)
		if ragErr == nil {
			progress("Local search complete", fmt.Sprintf("%d sources", len(ragRes.Sources)))
		}
	}()
	go func() {
		defer wg.Done()
		progress("Searching the web...")
		webRes, webErr = a.web.Search(ctx, query)
		if webErr == nil {
			progress("Web search complete", fmt.Sprintf("%d sources", len(webRes.Sources)))
		}
	}()
	wg.Wait()

	if ragErr != nil && webErr != nil {
		return "", fmt.Errorf("agent: both backends failed: local: %v; web: %v", ragErr, webErr)
	}

	log := logging.FromContext(ctx)
	var sb strings.Builder

	sb.WriteString("=== Local Knowledge ===\n")
	if ragErr != nil {
		log.Warn("agent: local search failed in Both mode", slog.Any("error", ragErr))
		sb.WriteString("Local knowledge search failed; answer from web results only.\n")
	} else {
		sb.WriteString(ragRes.Content + "\n")
		result.RAGResult = ragRes
		result.Sources = append(result.Sources, localSources(ragRes)...)
	}

	sb.WriteString("\n=== Web Results ===\n")
	if webErr != nil {
		log.Warn("agent: web search failed in Both mode", slog.Any("error", webErr))
		sb.WriteString("Web search failed; answer from local knowledge only.\n")
	} else {
		sb.WriteString(webRes.Content + "\n")
		result.WebResult = webRes
		result.Sources = append(result.Sources, webSources(webRes)...)
	}

	return sb.String(), nil
}

// localSources tags local search hits for attribution.
func localSources(res *rag.SearchResult) []Source {
	out := make([]Source, 0, len(res.Sources))
	for _, s := range res.Sources {
		out = append(out, Source{
			Type:     "local",
			Content:  s.Content,
			Metadata: s.Metadata,
			Score:    float64(s.Score),
		})
	}
	return out
}

// webSources tags web search hits for attribution.
func webSources(res *websearch.Result) []Source {
	out := make([]Source, 0, len(res.Sources))
	for _, s := range res.Sources {
		out = append(out, Source{
			Type:    "web",
			Title:   s.Title,
			URL:     s.URL,
			Content: s.Content,
			Score:   float64(s.Score),
		})
	}
	return out
}

// progressFunc wraps the caller's progress callback so a panic inside it can
// never abort the pipeline. A nil callback yields a no-op.
func progressFunc(ctx context.Context, cb func(status string, details ...string)) func(string, ...string) {
	if cb == nil {
		return func(string, ...string) {}
	}
	log := logging.FromContext(ctx)
	return func(status string, details ...string) {
		defer func() {
			if r := recover(); r != nil {
				log.Warn("agent: progress callback panicked", slog.Any("panic", r))
			}
		}()
		cb(status, details...)
	}
}
