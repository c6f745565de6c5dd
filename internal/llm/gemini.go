package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// GeminiClient streams chat completions from the Gemini API.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
	temperature  float32
	logger       arbor.ILogger
}

// NewGeminiClient builds a Client backed by the given resolved API key.
func NewGeminiClient(ctx context.Context, apiKey, defaultModel string, temperature float32, logger arbor.ILogger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, defaultModel: defaultModel, temperature: temperature, logger: logger}, nil
}

func (g *GeminiClient) ResolveModel(model string) ModelHandle {
	if model == "" {
		model = g.defaultModel
	}
	return ModelHandle{Provider: ProviderGemini, Model: NormalizeModel(model), Capabilities: []string{string(ChatCapability)}}
}

// Stream issues a single streaming GenerateContent call and forwards
// each text delta as a Chunk, retrying on rate limits the way the
// teacher's generateWithGemini retry loop does for its non-streaming
// call.
func (g *GeminiClient) Stream(ctx context.Context, handle ModelHandle, systemPrompt, userPrompt string) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		contents := []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}
		config := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
		if systemPrompt != "" {
			config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
		}

		retryConfig := NewDefaultRetryConfig()

		for attempt := 0; ; attempt++ {
			streamErr := g.drain(ctx, handle.Model, contents, config, chunks)
			if streamErr == nil {
				chunks <- Chunk{Done: true}
				return
			}
			if attempt >= retryConfig.MaxRetries || !IsRateLimitError(streamErr) {
				errs <- fmt.Errorf("gemini stream failed: %w", streamErr)
				return
			}
			backoff := retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(streamErr))
			if g.logger != nil {
				g.logger.Warn().Err(streamErr).Dur("backoff", backoff).Int("attempt", attempt+1).Msg("retrying Gemini stream after rate limit")
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

func (g *GeminiClient) drain(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig, chunks chan<- Chunk) error {
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return err
		}
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					chunks <- Chunk{Text: part.Text}
				}
			}
		}
	}
	return nil
}
