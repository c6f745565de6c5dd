// Package llm provides a provider-agnostic streaming chat client backing
// the Scorer's LLM fusion (§4.8) and the Publisher's article generation
// (§4.13), grounded in the teacher's internal/services/llm provider
// detection and retry logic (spec §6.3).
package llm

import (
	"context"
	"strings"
)

// Provider identifies which backend a model string routes to.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderGemini Provider = "gemini"
)

// Capability is a named ability a ModelHandle advertises, per §6.3. Only
// "chat" is exercised by this repo; the type exists so future
// capabilities (e.g. "embeddings") slot in without breaking callers.
type Capability string

const ChatCapability Capability = "chat"

// Chunk is a single piece of a streamed response.
type Chunk struct {
	Text string
	Done bool
}

// ModelHandle is a resolved, callable model.
type ModelHandle struct {
	Provider     Provider
	Model        string
	Capabilities []string
}

// HasCapability reports whether the handle advertises cap.
func (h ModelHandle) HasCapability(cap Capability) bool {
	for _, c := range h.Capabilities {
		if c == string(cap) {
			return true
		}
	}
	return false
}

// Client is a streaming chat backend. Each call to Stream returns a lazy,
// finite, non-restartable sequence of chunks (spec §9 DESIGN NOTES):
// callers must drain or cancel the context, never re-invoke Stream to
// "rewind".
type Client interface {
	ResolveModel(model string) ModelHandle
	Stream(ctx context.Context, handle ModelHandle, systemPrompt, userPrompt string) (<-chan Chunk, <-chan error)
}

// DetectProvider maps a model string to a Provider, matching the
// teacher's prefix/name-pattern rules exactly (claude//anthropic//
// claude- vs gemini//google//gemini-), falling back to
// defaultProvider when the string carries no recognizable marker.
func DetectProvider(model string, defaultProvider Provider) Provider {
	if model == "" {
		return defaultProvider
	}
	m := strings.ToLower(model)

	switch {
	case strings.HasPrefix(m, "claude/"), strings.HasPrefix(m, "anthropic/"), strings.HasPrefix(m, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(m, "gemini/"), strings.HasPrefix(m, "google/"), strings.HasPrefix(m, "gemini-"):
		return ProviderGemini
	default:
		return defaultProvider
	}
}

// NormalizeModel strips a recognized provider prefix from model.
func NormalizeModel(model string) string {
	for _, prefix := range []string{"claude/", "anthropic/", "gemini/", "google/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}
