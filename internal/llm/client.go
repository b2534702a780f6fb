// Package llm wraps an Eino chat model with the blocking and streaming
// generation calls used by the answering agent. It owns the per-call
// timeouts and normalises timeout failures into ErrTimeout so callers can
// report them distinctly from other generation errors.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrTimeout indicates the model did not respond within the configured
// generation deadline.
var ErrTimeout = errors.New("llm: generation timed out")

const (
	// defaultGenTimeout bounds a single generation call. Local models on
	// modest hardware can take a while on long prompts, so this is generous.
	defaultGenTimeout = 120 * time.Second
)

// Client wraps a chat model with timeout handling and temperature control.
// It is safe for concurrent use.
type Client struct {
	// chatModel is the underlying provider-constructed model.
	chatModel model.ToolCallingChatModel

	// modelName identifies the model in logs and the status probe.
	modelName string

	// genTimeout bounds each Generate/Stream call.
	genTimeout time.Duration
}

// Config holds the settings for constructing a Client.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// ModelName identifies the model in logs and the status probe.
	ModelName string

	// GenTimeout bounds each generation call. Defaults to 120s if zero.
	GenTimeout time.Duration
}

// New constructs a Client from the provided Config.
func New(cfg *Config) (*Client, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("llm: ChatModel must not be nil")
	}
	timeout := cfg.GenTimeout
	if timeout <= 0 {
		timeout = defaultGenTimeout
	}
	return &Client{
		chatModel:  cfg.ChatModel,
		modelName:  cfg.ModelName,
		genTimeout: timeout,
	}, nil
}

// ModelName returns the model identifier this client was constructed with.
func (c *Client) ModelName() string {
	return c.modelName
}

// Generate sends a single-turn prompt and blocks until the full response is
// available. The temperature controls sampling randomness: low values for
// deterministic tasks like classification, higher for open-ended answers.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	msg, err := c.chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	}, model.WithTemperature(temperature))
	if err != nil {
		return "", c.wrapErr(ctx, err)
	}
	return msg.Content, nil
}

// Stream sends a single-turn prompt and invokes onToken for each content
// chunk as it arrives. It returns the full accumulated response text once the
// stream completes. onToken may be nil, in which case Stream degenerates to a
// buffered Generate.
func (c *Client) Stream(ctx context.Context, prompt string, temperature float32, onToken func(token string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	sr, err := c.chatModel.Stream(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	}, model.WithTemperature(temperature))
	if err != nil {
		return "", c.wrapErr(ctx, err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return buf.String(), c.wrapErr(ctx, err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)
		if onToken != nil {
			onToken(msg.Content)
		}
	}
	return buf.String(), nil
}

// wrapErr maps deadline expiry onto ErrTimeout and wraps everything else.
func (c *Client) wrapErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s (model: %s)", ErrTimeout, c.genTimeout, c.modelName)
	}
	return fmt.Errorf("llm: generation failed (model: %s): %w", c.modelName, err)
}
