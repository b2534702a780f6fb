package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/localmind/localmind/internal/logging"
)

// Decision names which retrieval backend(s) a query should consult.
type Decision string

const (
	// DecisionLocal routes the query to the local knowledge base only.
	DecisionLocal Decision = "Local"
	// DecisionWeb routes the query to live web search only.
	DecisionWeb Decision = "Web"
	// DecisionBoth consults both backends in parallel.
	DecisionBoth Decision = "Both"
)

// classifyTemperature keeps the classification near-deterministic.
const classifyTemperature = 0.1

// classifyPromptTemplate asks for a single-field JSON object naming the tool.
const classifyPromptTemplate = `You are a query router. Decide which knowledge source should answer the user's query.

Rules:
- "Local": the query is about specific entities, internal documentation, stored knowledge, or stable domain facts.
- "Web": the query needs current information — recent events, news, prices, weather, anything mentioning "latest", "current", "today", or an explicit year.
- "Both": the query is ambiguous or broad enough that both stored knowledge and current information would help.

Respond with ONLY a JSON object in this exact shape, no other text:
{"tool": "Local"}

Query: %s`

// Classify returns the retrieval decision for query. The decision is cached
// by normalized query text; on a cache miss the classifier model is asked,
// and any model failure or unparseable output falls back to keyword
// heuristics. Classification never fails the request.
func (a *Agent) Classify(ctx context.Context, query string) Decision {
	log := logging.FromContext(ctx)
	key := strings.ToLower(strings.TrimSpace(query))

	if d, ok := a.decisions.Get(key); ok {
		log.Debug("classify: cache hit", slog.String("tool", string(d)))
		return d
	}

	decision, ok := a.classifyLLM(ctx, query)
	if !ok {
		decision = classifyHeuristic(query)
		log.Debug("classify: heuristic fallback", slog.String("tool", string(decision)))
	}

	a.decisions.Put(key, decision)
	return decision
}

// classifyLLM asks the classifier model and extracts the decision from its
// output. The second return is false when the model call failed or its output
// did not contain a valid decision.
func (a *Agent) classifyLLM(ctx context.Context, query string) (Decision, bool) {
	log := logging.FromContext(ctx)

	raw, err := a.classifier.Generate(ctx, fmt.Sprintf(classifyPromptTemplate, query), classifyTemperature)
	if err != nil {
		log.Warn("classify: model call failed, falling back to heuristics", slog.Any("error", err))
		return "", false
	}

	decision, ok := parseDecision(raw)
	if !ok {
		log.Warn("classify: could not parse model output, falling back to heuristics",
			slog.String("output", truncateForLog(raw)))
		return "", false
	}
	return decision, true
}

// truncateForLog bounds raw model output quoted in log messages.
func truncateForLog(s string) string {
	const max = 200
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
