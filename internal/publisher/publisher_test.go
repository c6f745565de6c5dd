package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/store"
)

func newResult(id string, score float64, postedMinutesAgo int) *models.CrawlResult {
	createdAt := time.Now().Add(-time.Duration(postedMinutesAgo) * time.Minute)
	return &models.CrawlResult{
		ID:          id,
		URL:         "https://example.com/" + id,
		ContentHash: "hash-" + id,
		Score:       score,
		Status:      models.ResultStatusCrawled,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestAddFeedbackClampsAndRecomputesRatings(t *testing.T) {
	st := store.New(1024 * 1024)
	r := newResult("r1", 0.8, 90)
	_, err := st.Add(r)
	require.NoError(t, err)

	require.NoError(t, AddFeedback(st, "r1", 10, "great", "user", true))
	require.NoError(t, AddFeedback(st, "r1", 3, "ok", "user", false))

	updated, ok := st.Get("r1")
	require.True(t, ok)
	assert.Equal(t, 2, updated.RatingCount)
	assert.Equal(t, 1, updated.Confirmations)
	assert.InDelta(t, 4.0, updated.RatingAverage, 0.001) // clamped 10->5, then (5+3)/2
}

func TestReadyForPublicationFiltersByAgeAndRating(t *testing.T) {
	st := store.New(1024 * 1024)

	old := newResult("old", 0.9, 90)
	old.RatingCount, old.RatingAverage, old.Confirmations = 3, 4.6, 2
	_, err := st.Add(old)
	require.NoError(t, err)

	young := newResult("young", 0.95, 30)
	young.RatingCount, young.RatingAverage, young.Confirmations = 3, 4.6, 2
	_, err = st.Add(young)
	require.NoError(t, err)

	ready := ReadyForPublication(st, 10, 60)
	require.Len(t, ready, 1)
	assert.Equal(t, "old", ready[0].ID)
}

type fakePoster struct {
	calls int
}

func (f *fakePoster) CreatePost(ctx context.Context, req PostRequest) (PostResponse, error) {
	f.calls++
	return PostResponse{ID: "post-1", Link: "https://blog.example.com/post-1"}, nil
}

func TestRunOnceSkipsCandidatesWithoutLLMConfigured(t *testing.T) {
	st := store.New(1024 * 1024)
	_, err := st.Add(newResult("r1", 0.9, 5))
	require.NoError(t, err)

	poster := &fakePoster{}
	pub := New(st, nil, poster, Config{MinScore: 0.6, MaxPostsPerHour: 3, FreshnessDays: 7}, nil)

	pub.RunOnce(context.Background())

	assert.Equal(t, 0, poster.calls)
	result, ok := st.Get("r1")
	require.True(t, ok)
	assert.Nil(t, result.PostedAt)
}
