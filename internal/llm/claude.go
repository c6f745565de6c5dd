package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/ternarybob/arbor"
)

// ClaudeClient streams chat completions from the Anthropic Messages API.
type ClaudeClient struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int
	logger       arbor.ILogger
}

// NewClaudeClient builds a Client backed by the given resolved API key.
func NewClaudeClient(apiKey, defaultModel string, maxTokens int, logger arbor.ILogger) *ClaudeClient {
	return &ClaudeClient{
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
		maxTokens:    maxTokens,
		logger:       logger,
	}
}

func (c *ClaudeClient) ResolveModel(model string) ModelHandle {
	if model == "" {
		model = c.defaultModel
	}
	return ModelHandle{Provider: ProviderClaude, Model: NormalizeModel(model), Capabilities: []string{string(ChatCapability)}}
}

// Stream issues a streaming Messages.NewStreaming call (retried on rate
// limits, see retry.go) and forwards each
// text delta as a Chunk. The returned channels close once the stream is
// exhausted or fails; this sequence cannot be restarted (spec §9).
func (c *ClaudeClient) Stream(ctx context.Context, handle ModelHandle, systemPrompt, userPrompt string) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(handle.Model),
			MaxTokens: int64(c.maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		}
		if systemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
		}

		retryConfig := NewDefaultRetryConfig()

		for attempt := 0; ; attempt++ {
			stream := c.client.Messages.NewStreaming(ctx, params)
			streamErr := c.drain(stream, chunks)
			if streamErr == nil {
				chunks <- Chunk{Done: true}
				return
			}
			if attempt >= retryConfig.MaxRetries || !IsRateLimitError(streamErr) {
				errs <- fmt.Errorf("claude stream failed: %w", streamErr)
				return
			}
			backoff := retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(streamErr))
			if c.logger != nil {
				c.logger.Warn().Err(streamErr).Dur("backoff", backoff).Int("attempt", attempt+1).Msg("retrying Claude stream after rate limit")
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case <-time.After(backoff):
			}
		}
	}()

	return chunks, errs
}

func (c *ClaudeClient) drain(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- Chunk) error {
	for stream.Next() {
		event := stream.Current()
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta.Delta.Text != "" {
				chunks <- Chunk{Text: delta.Delta.Text}
			}
		}
	}
	return stream.Err()
}
