package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

func result(id, hash string, score float64, updated time.Time) *models.CrawlResult {
	return &models.CrawlResult{
		ID:          id,
		ContentHash: hash,
		Score:       score,
		UpdatedAt:   updated,
		Content:     "some article body",
	}
}

func mustAdd(t *testing.T, s *Store, r *models.CrawlResult) string {
	t.Helper()
	id, err := s.Add(r)
	assert.NoError(t, err)
	return id
}

func TestAddDedupKeepsHigherScore(t *testing.T) {
	s := New(1 << 20)
	now := time.Now()

	mustAdd(t, s, result("r1", "hash-a", 0.5, now))
	resolvedID := mustAdd(t, s, result("r2", "hash-a", 0.8, now.Add(time.Minute)))
	assert.Equal(t, "r2", resolvedID)

	_, ok := s.Get("r1")
	assert.False(t, ok, "lower-score duplicate must be dropped")

	kept, ok := s.Get("r2")
	assert.True(t, ok)
	assert.Equal(t, 0.8, kept.Score)

	all := s.List(nil)
	assert.Len(t, all, 1)
}

func TestAddDedupReturnsSurvivingIDWhenDropped(t *testing.T) {
	s := New(1 << 20)
	now := time.Now()

	mustAdd(t, s, result("r1", "hash-a", 0.8, now))
	resolvedID := mustAdd(t, s, result("r2", "hash-a", 0.5, now.Add(time.Minute)))
	assert.Equal(t, "r1", resolvedID, "lower-score duplicate resolves to the surviving record's ID")
}

func TestAddEvictsLRUUnderMemoryPressure(t *testing.T) {
	sized, err := result("probe", "hash-probe", 0.1, time.Now()).SizeInBytes()
	assert.NoError(t, err)

	s := New(int64(sized) + 10)

	mustAdd(t, s, result("r1", "hash-1", 0.1, time.Now()))
	mustAdd(t, s, result("r2", "hash-2", 0.1, time.Now()))

	_, ok := s.Get("r1")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = s.Get("r2")
	assert.True(t, ok)

	assert.LessOrEqual(t, s.CurrentUsage(), int64(sized)+10)
}

func TestUpdateAdjustsUsage(t *testing.T) {
	s := New(1 << 20)
	mustAdd(t, s, result("r1", "hash-1", 0.5, time.Now()))

	before := s.CurrentUsage()
	updated := result("r1", "hash-1", 0.9, time.Now())
	updated.Content = "a much longer article body than before, to change the size"
	assert.NoError(t, s.Update("r1", updated))

	after := s.CurrentUsage()
	assert.NotEqual(t, before, after)

	got, ok := s.Get("r1")
	assert.True(t, ok)
	assert.Equal(t, 0.9, got.Score)
}

func TestListFiltersByPredicate(t *testing.T) {
	s := New(1 << 20)
	mustAdd(t, s, result("r1", "hash-1", 0.2, time.Now()))
	mustAdd(t, s, result("r2", "hash-2", 0.9, time.Now()))

	high := s.List(func(r *models.CrawlResult) bool { return r.Score >= 0.5 })
	assert.Len(t, high, 1)
	assert.Equal(t, "r2", high[0].ID)
}
