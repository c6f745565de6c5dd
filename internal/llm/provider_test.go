package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectProviderByPrefix(t *testing.T) {
	assert.Equal(t, ProviderClaude, DetectProvider("claude/claude-sonnet-4", ProviderGemini))
	assert.Equal(t, ProviderClaude, DetectProvider("anthropic/claude-opus", ProviderGemini))
	assert.Equal(t, ProviderGemini, DetectProvider("gemini/gemini-2-flash", ProviderClaude))
	assert.Equal(t, ProviderGemini, DetectProvider("google/gemini-2-flash", ProviderClaude))
}

func TestDetectProviderByModelName(t *testing.T) {
	assert.Equal(t, ProviderClaude, DetectProvider("claude-sonnet-4-20250514", ProviderGemini))
	assert.Equal(t, ProviderGemini, DetectProvider("gemini-3-flash", ProviderClaude))
}

func TestDetectProviderFallsBackToDefault(t *testing.T) {
	assert.Equal(t, ProviderGemini, DetectProvider("", ProviderGemini))
	assert.Equal(t, ProviderClaude, DetectProvider("some-unknown-model", ProviderClaude))
}

func TestNormalizeModelStripsPrefix(t *testing.T) {
	assert.Equal(t, "claude-sonnet-4", NormalizeModel("claude/claude-sonnet-4"))
	assert.Equal(t, "gemini-2-flash", NormalizeModel("google/gemini-2-flash"))
	assert.Equal(t, "unprefixed-model", NormalizeModel("unprefixed-model"))
}

func TestModelHandleHasCapability(t *testing.T) {
	h := ModelHandle{Capabilities: []string{"chat"}}
	assert.True(t, h.HasCapability(ChatCapability))
	assert.False(t, h.HasCapability(Capability("embeddings")))
}

func TestCalculateBackoffCapsAtMax(t *testing.T) {
	cfg := NewDefaultRetryConfig()
	for attempt := 0; attempt < 10; attempt++ {
		backoff := cfg.CalculateBackoff(attempt, 0)
		assert.LessOrEqual(t, backoff, cfg.MaxBackoff)
	}
}

func TestCalculateBackoffPrefersAPIDelay(t *testing.T) {
	cfg := NewDefaultRetryConfig()
	backoff := cfg.CalculateBackoff(0, 10*time.Second)
	assert.GreaterOrEqual(t, backoff, 15*time.Second)
}

func TestExtractRetryDelayParsesMessage(t *testing.T) {
	err := assertError{msg: "Error 429, Message: rate limited. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED"}
	delay := ExtractRetryDelay(err)
	assert.InDelta(t, 45.5, delay.Seconds(), 0.01)
}

func TestIsRateLimitErrorMatchesKnownPatterns(t *testing.T) {
	assert.True(t, IsRateLimitError(assertError{msg: "received 429 from server"}))
	assert.True(t, IsRateLimitError(assertError{msg: "RESOURCE_EXHAUSTED: quota exceeded"}))
	assert.False(t, IsRateLimitError(assertError{msg: "not found"}))
	assert.False(t, IsRateLimitError(nil))
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
