package publisher

import (
	"sort"
	"time"

	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/store"
)

// AddFeedback implements the feedback surface of spec §4.13:
// add_feedback(result_id, score, comment?, confirmed, source) clamps
// score to [0,5], appends, recomputes rating_count/average, increments
// confirmations, and bumps updated_at.
func AddFeedback(st *store.Store, resultID string, score float64, comment, source string, confirmed bool) error {
	result, ok := st.Get(resultID)
	if !ok {
		return errNotFound(resultID)
	}

	if score < 0 {
		score = 0
	}
	if score > 5 {
		score = 5
	}

	updated := *result
	updated.Feedback = append(append([]models.CrawlFeedback{}, result.Feedback...), models.CrawlFeedback{
		Score:     score,
		Comment:   comment,
		Source:    source,
		Confirmed: confirmed,
		CreatedAt: time.Now().UTC(),
	})
	updated.RecomputeRatings()
	updated.UpdatedAt = time.Now().UTC()

	return st.Update(resultID, &updated)
}

// ReadyForPublication implements ready_for_publication(limit,
// min_age_minutes) from spec §4.13: unpublished results with
// rating_count >= 2, rating_average >= 4.0, confirmations >= 1, and
// created_at <= now - min_age_minutes, sorted by score desc.
func ReadyForPublication(st *store.Store, limit, minAgeMinutes int) []*models.CrawlResult {
	cutoff := time.Now().Add(-time.Duration(minAgeMinutes) * time.Minute)

	candidates := st.List(func(r *models.CrawlResult) bool {
		return r.PostedAt == nil &&
			r.RatingCount >= 2 &&
			r.RatingAverage >= 4.0 &&
			r.Confirmations >= 1 &&
			!r.CreatedAt.After(cutoff)
	})

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

type notFoundError string

func (e notFoundError) Error() string { return "publisher: result not found: " + string(e) }

func errNotFound(id string) error { return notFoundError(id) }
