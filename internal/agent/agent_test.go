package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/localmind/localmind/internal/rag"
	"github.com/localmind/localmind/internal/websearch"
)

func localResult() *rag.SearchResult {
	return &rag.SearchResult{
		Content: "1. The deployment guide lives in the handbook.",
		Sources: []rag.SourceDoc{{Content: "The deployment guide lives in the handbook.", Score: 0.82}},
	}
}

func webResult() *websearch.Result {
	return &websearch.Result{
		Content: "AI Summary: something current.",
		Sources: []websearch.Source{{Title: "Page", URL: "https://example.com", Content: "snippet", Score: 90}},
		Answer:  "something current.",
	}
}

func TestAnswerLocalPath(t *testing.T) {
	t.Parallel()

	local := &fakeLocal{res: localResult()}
	web := &fakeWeb{res: webResult()}
	a := newTestAgent(t, &fakeGen{resp: "From the handbook."}, &fakeGen{resp: `{"tool": "Local"}`}, local, web)

	ans, err := a.Answer(context.Background(), "how do I deploy", nil)
	if err != nil {
		t.Fatalf("Answer() failed: %v", err)
	}
	if ans.Tool != DecisionLocal {
		t.Errorf("tool = %q, want Local", ans.Tool)
	}
	if web.calls != 0 {
		t.Errorf("web backend called %d times on a Local decision, want 0", web.calls)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].Type != "local" {
		t.Errorf("sources = %+v, want one local-tagged source", ans.Sources)
	}
	if ans.RAGResult == nil || ans.WebResult != nil {
		t.Error("Local path should carry RAGResult only")
	}
}

func TestAnswerLocalFailurePropagates(t *testing.T) {
	t.Parallel()

	local := &fakeLocal{err: errors.New("qdrant unreachable")}
	a := newTestAgent(t, &fakeGen{resp: "x"}, &fakeGen{resp: `{"tool": "Local"}`}, local, &fakeWeb{res: webResult()})

	if _, err := a.Answer(context.Background(), "q", nil); err == nil {
		t.Fatal("Answer() should propagate a single-backend failure")
	}
}

func TestAnswerWebOnlyBypassesClassification(t *testing.T) {
	t.Parallel()

	clf := &fakeGen{resp: `{"tool": "Local"}`}
	web := &fakeWeb{res: webResult()}
	a := newTestAgent(t, &fakeGen{resp: "current answer"}, clf, &fakeLocal{res: localResult()}, web)

	ans, err := a.Answer(context.Background(), "q", &Options{WebOnly: true})
	if err != nil {
		t.Fatalf("Answer() failed: %v", err)
	}
	if ans.Tool != DecisionWeb {
		t.Errorf("tool = %q, want Web", ans.Tool)
	}
	if clf.calls != 0 {
		t.Errorf("classifier called %d times with WebOnly, want 0", clf.calls)
	}
	if web.calls != 1 {
		t.Errorf("web backend called %d times, want 1", web.calls)
	}
}

func TestAnswerBothPartialFailure(t *testing.T) {
	t.Parallel()

	local := &fakeLocal{res: localResult()}
	web := &fakeWeb{err: errors.New("tavily down")}
	a := newTestAgent(t, &fakeGen{resp: "grounded answer"}, &fakeGen{resp: `{"tool": "Both"}`}, local, web)

	ans, err := a.Answer(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Answer() should tolerate one backend failing in Both mode: %v", err)
	}
	for _, s := range ans.Sources {
		if s.Type != "local" {
			t.Errorf("unexpected %q source after web failure", s.Type)
		}
	}
	if len(ans.Sources) != 1 {
		t.Errorf("sources = %d, want 1 (local only)", len(ans.Sources))
	}
	if ans.WebResult != nil {
		t.Error("failed web backend must not contribute a WebResult")
	}
}

func TestAnswerBothMergesSources(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, &fakeGen{resp: "merged answer"}, &fakeGen{resp: `{"tool": "Both"}`},
		&fakeLocal{res: localResult()}, &fakeWeb{res: webResult()})

	ans, err := a.Answer(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Answer() failed: %v", err)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(ans.Sources))
	}
	types := map[string]bool{}
	for _, s := range ans.Sources {
		types[s.Type] = true
	}
	if !types["local"] || !types["web"] {
		t.Errorf("sources missing a backend tag: %+v", ans.Sources)
	}
}

func TestAnswerBothTotalFailure(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, &fakeGen{resp: "x"}, &fakeGen{resp: `{"tool": "Both"}`},
		&fakeLocal{err: errors.New("down")}, &fakeWeb{err: errors.New("also down")})

	if _, err := a.Answer(context.Background(), "q", nil); err == nil {
		t.Fatal("Answer() should fail when both backends fail")
	}
}

func TestAnswerGenerationFailureIsFatal(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, &fakeGen{err: errors.New("model crashed")}, &fakeGen{resp: `{"tool": "Local"}`},
		&fakeLocal{res: localResult()}, &fakeWeb{res: webResult()})

	if _, err := a.Answer(context.Background(), "q", nil); err == nil {
		t.Fatal("Answer() should fail when generation fails")
	}
}

func TestAnswerStripsScaffoldLabel(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, &fakeGen{resp: "COMPREHENSIVE ANSWER: the real text"}, &fakeGen{resp: `{"tool": "Local"}`},
		&fakeLocal{res: localResult()}, &fakeWeb{})

	ans, err := a.Answer(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Answer() failed: %v", err)
	}
	if ans.Answer != "the real text" {
		t.Errorf("answer = %q, scaffold label not stripped", ans.Answer)
	}
}

func TestAnswerProgressPanicIsAbsorbed(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, &fakeGen{resp: "fine"}, &fakeGen{resp: `{"tool": "Local"}`},
		&fakeLocal{res: localResult()}, &fakeWeb{})

	ans, err := a.Answer(context.Background(), "q", &Options{
		OnProgress: func(string, ...string) { panic("listener bug") },
	})
	if err != nil {
		t.Fatalf("Answer() failed despite panic-safe progress contract: %v", err)
	}
	if ans.Answer != "fine" {
		t.Errorf("answer = %q, want %q", ans.Answer, "fine")
	}
}

func TestAnswerStreamsTokens(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, &fakeGen{resp: "streamed text"}, &fakeGen{resp: `{"tool": "Local"}`},
		&fakeLocal{res: localResult()}, &fakeWeb{})

	var streamed strings.Builder
	ans, err := a.Answer(context.Background(), "q", &Options{
		OnToken: func(tok string) { streamed.WriteString(tok) },
	})
	if err != nil {
		t.Fatalf("Answer() failed: %v", err)
	}
	if streamed.String() != "streamed text" {
		t.Errorf("streamed = %q, want %q", streamed.String(), "streamed text")
	}
	if ans.Answer != "streamed text" {
		t.Errorf("final answer = %q, want %q", ans.Answer, "streamed text")
	}
}
