package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "secrets")}, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "Claude-API-Key", "sk-test-123"))

	value, err := store.Get(ctx, "claude-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", value)
}

func TestGetMissingKeyReturnsErrKeyNotFound(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "secrets")}, nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestResolveAPIKeyPrefersStoreOverEnv(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "secrets")}, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "gemini-api-key", "from-store"))
	os.Setenv("FOCUSEDCRAWL_TEST_GEMINI_KEY", "from-env")
	defer os.Unsetenv("FOCUSEDCRAWL_TEST_GEMINI_KEY")

	value, err := store.ResolveAPIKey(ctx, "gemini-api-key", "FOCUSEDCRAWL_TEST_GEMINI_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-store", value)
}

func TestResolveAPIKeyFallsBackToEnv(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "secrets")}, nil)
	require.NoError(t, err)
	defer store.Close()

	os.Setenv("FOCUSEDCRAWL_TEST_CLAUDE_KEY", "from-env-only")
	defer os.Unsetenv("FOCUSEDCRAWL_TEST_CLAUDE_KEY")

	value, err := store.ResolveAPIKey(context.Background(), "unset-provider-key", "FOCUSEDCRAWL_TEST_CLAUDE_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env-only", value)
}
