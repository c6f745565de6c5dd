package ssrf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSafeRejectsNonHTTPScheme(t *testing.T) {
	g := NewGuard()
	ok, reason := g.IsSafe(context.Background(), "ftp://example.com/file")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestIsSafeRejectsMetadataHost(t *testing.T) {
	g := NewGuard()
	ok, _ := g.IsSafe(context.Background(), "http://169.254.169.254/latest/meta-data")
	assert.False(t, ok)
}

func TestIsSafeRejectsPrivateLiteralIP(t *testing.T) {
	g := NewGuard()
	ok, _ := g.IsSafe(context.Background(), "http://10.0.0.5/")
	assert.False(t, ok)

	ok, _ = g.IsSafe(context.Background(), "http://192.168.1.1/")
	assert.False(t, ok)

	ok, _ = g.IsSafe(context.Background(), "http://127.0.0.1:8080/")
	assert.False(t, ok)
}

func TestIsSafeAllowsPublicLiteralIP(t *testing.T) {
	g := NewGuard()
	ok, reason := g.IsSafe(context.Background(), "https://93.184.216.34/")
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestIsSafeRejectsUnparseableURL(t *testing.T) {
	g := NewGuard()
	ok, _ := g.IsSafe(context.Background(), "://not a url")
	assert.False(t, ok)
}

func TestIsSafeRejectsMissingHostname(t *testing.T) {
	g := NewGuard()
	ok, _ := g.IsSafe(context.Background(), "https:///path-only")
	assert.False(t, ok)
}
