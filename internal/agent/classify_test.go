package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/localmind/localmind/internal/rag"
	"github.com/localmind/localmind/internal/websearch"
)

// fakeGen implements generator with canned output.
type fakeGen struct {
	resp  string
	err   error
	calls int
}

func (f *fakeGen) Generate(_ context.Context, _ string, _ float32) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.resp, nil
}

func (f *fakeGen) Stream(_ context.Context, _ string, _ float32, onToken func(string)) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if onToken != nil {
		onToken(f.resp)
	}
	return f.resp, nil
}

// fakeLocal implements localSearcher.
type fakeLocal struct {
	res   *rag.SearchResult
	err   error
	calls int
}

func (f *fakeLocal) Search(_ context.Context, _ string) (*rag.SearchResult, error) {
	f.calls++
	return f.res, f.err
}

// fakeWeb implements webSearcher.
type fakeWeb struct {
	res   *websearch.Result
	err   error
	calls int
}

func (f *fakeWeb) Search(_ context.Context, _ string) (*websearch.Result, error) {
	f.calls++
	return f.res, f.err
}

func newTestAgent(t *testing.T, gen, clf *fakeGen, local *fakeLocal, web *fakeWeb) *Agent {
	t.Helper()
	a, err := New(&Config{
		Generator:  gen,
		Classifier: clf,
		Knowledge:  local,
		Web:        web,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return a
}

func TestClassifyCacheDeterminism(t *testing.T) {
	t.Parallel()

	clf := &fakeGen{resp: `{"tool": "Web"}`}
	a := newTestAgent(t, &fakeGen{}, clf, &fakeLocal{}, &fakeWeb{})

	ctx := context.Background()
	first := a.Classify(ctx, "What Is The Latest News?")
	second := a.Classify(ctx, "what is the latest news?")

	if first != second {
		t.Errorf("decisions differ across calls: %q vs %q", first, second)
	}
	if clf.calls != 1 {
		t.Errorf("classifier model called %d times, want 1 (second call must hit the cache)", clf.calls)
	}
}

func TestClassifyFallsBackOnModelError(t *testing.T) {
	t.Parallel()

	clf := &fakeGen{err: errors.New("model down")}
	a := newTestAgent(t, &fakeGen{}, clf, &fakeLocal{}, &fakeWeb{})

	d := a.Classify(context.Background(), "What happened in the news today?")
	if d != DecisionWeb {
		t.Errorf("heuristic fallback = %q, want Web for a news query", d)
	}
}

func TestClassifyFallsBackOnGarbageOutput(t *testing.T) {
	t.Parallel()

	clf := &fakeGen{resp: "I think you should probably use the local database for this one."}
	a := newTestAgent(t, &fakeGen{}, clf, &fakeLocal{}, &fakeWeb{})

	d := a.Classify(context.Background(), "How do I configure the internal documentation API?")
	if d != DecisionLocal {
		t.Errorf("heuristic fallback = %q, want Local for an internal-docs query", d)
	}
}

func TestParseDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Decision
		ok   bool
	}{
		{"clean", `{"tool": "Local"}`, DecisionLocal, true},
		{"lowercase value", `{"tool": "web"}`, DecisionWeb, true},
		{"wrapped in prose", "Sure! Here is my decision: {\"tool\": \"Both\"} — hope that helps.", DecisionBoth, true},
		{"markdown fence", "```json\n{\"tool\": \"Web\"}\n```", DecisionWeb, true},
		{"invalid tool", `{"tool": "Database"}`, "", false},
		{"no json", "use the web", "", false},
		{"broken json", `{"tool": "Local`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseDecision(tt.raw)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseDecision(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestClassifyHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  Decision
	}{
		{"What happened in the news today?", DecisionWeb},
		{"How do I configure the internal documentation API?", DecisionLocal},
		{"latest documentation", DecisionBoth},
		{"What is the weather forecast for 2026?", DecisionWeb},
		{"completely unrelated gibberish", DecisionLocal},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			if got := classifyHeuristic(tt.query); got != tt.want {
				t.Errorf("classifyHeuristic(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}
