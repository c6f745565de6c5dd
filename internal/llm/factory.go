package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/kv"
)

// Factory resolves a model string to the right backend Client, the
// same routing role as the teacher's ProviderFactory.
type Factory struct {
	claude       Client
	gemini       Client
	defaultModel Provider
}

// Config names the default models and which provider is used when a
// caller passes an unprefixed/empty model string.
type Config struct {
	DefaultProvider    Provider
	ClaudeModel        string
	ClaudeMaxTokens    int
	GeminiModel        string
	GeminiTemperature  float32
	ClaudeAPIKeyEnvVar string
	GeminiAPIKeyEnvVar string
}

// NewFactory resolves API keys via store (falling back to the
// configured env vars) and builds whichever backend clients have
// usable credentials. A provider with no credentials is simply absent
// from the factory; Resolve still routes to it by name but returns a
// "not configured" error, so Stream fails fast.
func NewFactory(ctx context.Context, cfg Config, store *kv.Store, logger arbor.ILogger) (*Factory, error) {
	f := &Factory{defaultModel: cfg.DefaultProvider}

	if apiKey, err := store.ResolveAPIKey(ctx, "anthropic-api-key", cfg.ClaudeAPIKeyEnvVar); err == nil {
		f.claude = NewClaudeClient(apiKey, cfg.ClaudeModel, cfg.ClaudeMaxTokens, logger)
	} else if logger != nil {
		logger.Debug().Err(err).Msg("claude credentials unavailable, provider disabled")
	}

	if apiKey, err := store.ResolveAPIKey(ctx, "gemini-api-key", cfg.GeminiAPIKeyEnvVar); err == nil {
		client, buildErr := NewGeminiClient(ctx, apiKey, cfg.GeminiModel, cfg.GeminiTemperature, logger)
		if buildErr != nil {
			return nil, buildErr
		}
		f.gemini = client
	} else if logger != nil {
		logger.Debug().Err(err).Msg("gemini credentials unavailable, provider disabled")
	}

	if f.claude == nil && f.gemini == nil {
		return nil, fmt.Errorf("llm: no provider has usable credentials")
	}
	return f, nil
}

// Resolve picks the backend client for model, per DetectProvider's
// routing rules.
func (f *Factory) Resolve(model string) (Client, ModelHandle, error) {
	provider := DetectProvider(model, f.defaultModel)
	switch provider {
	case ProviderClaude:
		if f.claude == nil {
			return nil, ModelHandle{}, fmt.Errorf("llm: claude requested but not configured")
		}
		return f.claude, f.claude.ResolveModel(model), nil
	case ProviderGemini:
		if f.gemini == nil {
			return nil, ModelHandle{}, fmt.Errorf("llm: gemini requested but not configured")
		}
		return f.gemini, f.gemini.ResolveModel(model), nil
	default:
		return nil, ModelHandle{}, fmt.Errorf("llm: unknown provider for model %q", model)
	}
}

// Stream resolves model to a client/handle and streams a single chat
// turn, the convenience entrypoint used by the Scorer and Publisher. A
// handle that does not advertise ChatCapability is refused with an
// error before any call is made.
func (f *Factory) Stream(ctx context.Context, model, systemPrompt, userPrompt string) (<-chan Chunk, <-chan error) {
	client, handle, err := f.Resolve(model)
	if err == nil && !handle.HasCapability(ChatCapability) {
		err = fmt.Errorf("llm: model %q does not advertise the %q capability", handle.Model, ChatCapability)
	}
	if err != nil {
		errs := make(chan error, 1)
		errs <- err
		close(errs)
		chunks := make(chan Chunk)
		close(chunks)
		return chunks, errs
	}
	return client.Stream(ctx, handle, systemPrompt, userPrompt)
}
