// Package modelopenai adapts an OpenAI-compatible chat completions
// endpoint to turn.Model, streaming chunks back to the caller as they
// arrive and retrying transient provider failures with backoff.
package modelopenai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/relaycore/turnkit/turn"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config configures an Adapter.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Retry      RetryPolicy
}

// Adapter implements turn.Model against an OpenAI-compatible chat
// completions endpoint, in streaming mode.
type Adapter struct {
	client *openai.Client
	model  string
	retry  RetryPolicy
}

var _ turn.Model = (*Adapter)(nil)

// New validates cfg and returns a ready Adapter.
func New(cfg Config) (*Adapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("new model adapter: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("new model adapter: model is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" && baseURL != defaultBaseURL {
		clientConfig.BaseURL = baseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	} else if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.BaseDelay == 0 {
		retry = DefaultRetryPolicy()
	}

	return &Adapter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		retry:  retry,
	}, nil
}

// Generate streams one assistant turn from the provider, forwarding
// text, reasoning, and tool-call-argument fragments to onChunk as they
// arrive. Retryable provider errors are retried with exponential
// backoff before being surfaced wrapped in turn.ErrProviderUnrecoverable.
func (a *Adapter) Generate(ctx context.Context, request turn.ModelRequest, onChunk func(turn.StreamChunk) error) (turn.Message, turn.Usage, error) {
	req, err := buildRequest(a.model, request)
	if err != nil {
		return turn.Message{}, turn.Usage{}, fmt.Errorf("provider request: %w", err)
	}

	type streamResult struct {
		message turn.Message
		usage   turn.Usage
	}

	result, err := Retry(ctx, a.retry, func(ctx context.Context) (streamResult, error) {
		message, usage, err := a.stream(ctx, req, onChunk)
		return streamResult{message: message, usage: usage}, err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return turn.Message{}, turn.Usage{}, err
		}
		return turn.Message{}, turn.Usage{}, fmt.Errorf("%w: %w", turn.ErrProviderUnrecoverable, err)
	}
	return result.message, result.usage, nil
}

func (a *Adapter) stream(ctx context.Context, req openai.ChatCompletionRequest, onChunk func(turn.StreamChunk) error) (turn.Message, turn.Usage, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return turn.Message{}, turn.Usage{}, fmt.Errorf("provider stream open: %w", err)
	}
	defer stream.Close()

	var builder assistantBuilder
	var usage turn.Usage

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return turn.Message{}, turn.Usage{}, fmt.Errorf("provider stream recv: %w", err)
		}
		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			builder.appendText(delta.Content)
			if err := onChunk(turn.StreamChunk{Kind: turn.StreamChunkTextDelta, TextDelta: delta.Content}); err != nil {
				return turn.Message{}, turn.Usage{}, fmt.Errorf("publish text chunk: %w", err)
			}
		}
		if delta.ReasoningContent != "" {
			builder.appendReasoning(delta.ReasoningContent)
			if err := onChunk(turn.StreamChunk{Kind: turn.StreamChunkReasoningDelta, ReasoningDelta: delta.ReasoningContent}); err != nil {
				return turn.Message{}, turn.Usage{}, fmt.Errorf("publish reasoning chunk: %w", err)
			}
		}
		for _, toolCallDelta := range delta.ToolCalls {
			id, name, argsDelta := builder.appendToolCallDelta(toolCallDelta)
			if err := onChunk(turn.StreamChunk{
				Kind:              turn.StreamChunkToolCallDelta,
				ToolCallID:        id,
				ToolCallName:      name,
				ToolCallArgsDelta: argsDelta,
			}); err != nil {
				return turn.Message{}, turn.Usage{}, fmt.Errorf("publish tool call chunk: %w", err)
			}
		}
	}

	return builder.build(), usage, nil
}
