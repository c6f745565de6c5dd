package shard

import (
	"bufio"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

func TestAppendCreatesShardAndIndexEntry(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	err = w.Append([]*models.CrawlResult{
		{ID: "r1", URL: "https://example.com/a", NormalizedText: "hello world", Score: 0.6, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	})
	require.NoError(t, err)

	idx := w.Index()
	require.Len(t, idx.Shards, 1)
	assert.Equal(t, 1, idx.Shards[0].Records)

	path := filepath.Join(dir, idx.Shards[0].Name)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
}

func TestAppendNeverShrinksShard(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, w.Append([]*models.CrawlResult{{ID: "r1", NormalizedText: "one"}}))
	first := w.Index().Shards[0].SizeBytes

	require.NoError(t, w.Append([]*models.CrawlResult{{ID: "r2", NormalizedText: "two"}}))
	second := w.Index().Shards[0].SizeBytes

	assert.Greater(t, second, first)
}

func TestCompactArchivesOldShardsAndPreservesContent(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, w.Append([]*models.CrawlResult{{ID: "r1", NormalizedText: "archived content"}}))

	// Backdate the shard's CreatedAt so it falls outside retention.
	idx := w.Index()
	require.Len(t, idx.Shards, 1)
	name := idx.Shards[0].Name
	w.index.Shards[0].CreatedAt = time.Now().UTC().AddDate(0, 0, -30)

	require.NoError(t, w.Compact(7))

	assert.Empty(t, w.Index().Shards, "archived shard must leave the live index")

	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err), "original shard must be removed")

	gzPath := filepath.Join(dir, "archive", name+".gz")
	f, err := os.Open(gzPath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), "archived content")
}
