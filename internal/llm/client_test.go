package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel implements model.ToolCallingChatModel for tests without any
// network dependency.
type fakeChatModel struct {
	resp   string
	chunks []string
	err    error
	calls  int
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.resp, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (f *fakeChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func TestNewRequiresChatModel(t *testing.T) {
	t.Parallel()

	if _, err := New(&Config{}); err == nil {
		t.Fatal("New() with nil ChatModel should fail")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{resp: "hello there"}
	c, err := New(&Config{ChatModel: fake, ModelName: "test-model"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	got, err := c.Generate(context.Background(), "hi", 0.7)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Generate() = %q, want %q", got, "hello there")
	}
}

func TestGenerateWrapsError(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{err: errors.New("boom")}
	c, _ := New(&Config{ChatModel: fake, ModelName: "test-model"})

	_, err := c.Generate(context.Background(), "hi", 0.1)
	if err == nil {
		t.Fatal("Generate() should propagate model errors")
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("non-deadline error must not map to ErrTimeout: %v", err)
	}
	if !strings.Contains(err.Error(), "test-model") {
		t.Errorf("error should name the model: %v", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{err: context.DeadlineExceeded}
	c, _ := New(&Config{ChatModel: fake, ModelName: "slow-model"})

	_, err := c.Generate(context.Background(), "hi", 0.7)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("deadline error should map to ErrTimeout, got: %v", err)
	}
}

func TestStreamAccumulatesAndNotifies(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{chunks: []string{"The ", "answer ", "is 42."}}
	c, _ := New(&Config{ChatModel: fake, ModelName: "test-model"})

	var tokens []string
	got, err := c.Stream(context.Background(), "q", 0.7, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}
	if got != "The answer is 42." {
		t.Errorf("Stream() accumulated = %q, want %q", got, "The answer is 42.")
	}
	if len(tokens) != 3 {
		t.Errorf("onToken called %d times, want 3", len(tokens))
	}
}

func TestStreamNilCallback(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{chunks: []string{"a", "b"}}
	c, _ := New(&Config{ChatModel: fake, ModelName: "test-model"})

	got, err := c.Stream(context.Background(), "q", 0.7, nil)
	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}
	if got != "ab" {
		t.Errorf("Stream() = %q, want %q", got, "ab")
	}
}
