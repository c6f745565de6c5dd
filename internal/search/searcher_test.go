package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/shard"
	"github.com/ternarybob/focusedcrawl/internal/store"
)

func addResult(t *testing.T, st *store.Store, url, normalized string, score float64) {
	t.Helper()
	r := &models.CrawlResult{
		ID:             "id-" + url,
		URL:            url,
		SourceDomain:   "example.com",
		NormalizedText: normalized,
		Score:          score,
		ContentHash:    models.ComputeContentHash(normalized),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	_, err := st.Add(r)
	require.NoError(t, err)
}

func TestSearchRanksByBM25FusedWithStoredScore(t *testing.T) {
	st := store.New(10 * 1024 * 1024)
	addResult(t, st, "https://example.com/a", "linux kernel scheduling internals deep dive", 0.9)
	addResult(t, st, "https://example.com/b", "a recipe for chocolate cake", 0.2)

	writer, err := shard.New(t.TempDir(), nil)
	require.NoError(t, err)

	searcher := New(st, writer, 0, nil)
	results := searcher.Search(context.Background(), "linux kernel", 10, 0, 30)

	require.NotEmpty(t, results)
	assert.Equal(t, "https://example.com/a", results[0].URL)
}

func TestSearchAppliesMinScoreFilter(t *testing.T) {
	st := store.New(10 * 1024 * 1024)
	addResult(t, st, "https://example.com/a", "completely unrelated content about gardening", 0.1)

	searcher := New(st, nil, 0, nil)
	results := searcher.Search(context.Background(), "linux kernel", 10, 0.5, 30)

	assert.Empty(t, results)
}

func TestSearchIncludesFreshShardRecords(t *testing.T) {
	dir := t.TempDir()
	writer, err := shard.New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, writer.Append([]*models.CrawlResult{
		{
			ID:             "shard-1",
			URL:            "https://example.com/shard",
			SourceDomain:   "example.com",
			NormalizedText: "machine learning research paper",
			Score:          0.7,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		},
	}))

	st := store.New(10 * 1024 * 1024)
	searcher := New(st, writer, 0, nil)
	results := searcher.Search(context.Background(), "machine learning", 10, 0, 30)

	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/shard", results[0].URL)
}
