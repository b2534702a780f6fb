package embedder

import (
	"context"
	"strings"
	"testing"
)

// fakeEmbedder records calls and returns a fixed vector per input.
type fakeEmbedder struct {
	calls      int
	totalTexts int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.totalTexts += len(texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func TestCachedEmbedderHit(t *testing.T) {
	t.Parallel()

	inner := &fakeEmbedder{}
	e, err := NewCachedEmbedder(inner, nil)
	if err != nil {
		t.Fatalf("NewCachedEmbedder() failed: %v", err)
	}

	ctx := context.Background()
	first, err := e.Embed(ctx, []string{"what is qdrant"})
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}
	second, err := e.Embed(ctx, []string{"what is qdrant"})
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner embedder called %d times, want 1 (second call should hit the cache)", inner.calls)
	}
	if len(second) != 1 || len(second[0]) != len(first[0]) {
		t.Errorf("cached vector differs from original")
	}
}

func TestCachedEmbedderBatchesMisses(t *testing.T) {
	t.Parallel()

	inner := &fakeEmbedder{}
	e, _ := NewCachedEmbedder(inner, nil)

	ctx := context.Background()
	if _, err := e.Embed(ctx, []string{"alpha"}); err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}

	// One cached, two new — the two misses must go out in a single batch.
	out, err := e.Embed(ctx, []string{"beta", "alpha", "gamma"})
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Embed() returned %d vectors, want 3", len(out))
	}
	for i, v := range out {
		if len(v) == 0 {
			t.Errorf("vector %d is empty", i)
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner embedder called %d times, want 2", inner.calls)
	}
	if inner.totalTexts != 3 {
		t.Errorf("inner embedder saw %d texts, want 3 (alpha must not be re-embedded)", inner.totalTexts)
	}
}

func TestCachedEmbedderPrefixCollision(t *testing.T) {
	t.Parallel()

	inner := &fakeEmbedder{}
	e, _ := NewCachedEmbedder(inner, nil)

	prefix := strings.Repeat("x", cacheKeyLen)
	ctx := context.Background()
	if _, err := e.Embed(ctx, []string{prefix + " first tail"}); err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}
	// Same leading characters: keyed identically, served from cache.
	if _, err := e.Embed(ctx, []string{prefix + " different tail"}); err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner embedder called %d times, want 1 (shared prefix shares the cache slot)", inner.calls)
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  bool
	}{
		{"nomic-embed-text", false},
		{"text-embedding-3-small", false},
		{"llama3", true},
		{"GPT-4o", true},
		{"mxbai-embed-large", false},
	}
	for _, tt := range tests {
		if got := looksLikeChatModel(tt.model); got != tt.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
