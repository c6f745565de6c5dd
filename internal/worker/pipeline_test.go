package worker

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/focusedcrawl/internal/extract"
	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/sharedstate"
	"github.com/ternarybob/focusedcrawl/internal/ssrf"
)

func TestRetryOrFailRetriesUntilLimit(t *testing.T) {
	item := &Item{Retries: 0}

	disposition := retryOrFail(item)
	assert.Equal(t, dispositionRetry, disposition)
	assert.Equal(t, 1, item.Retries)

	disposition = retryOrFail(item)
	assert.Equal(t, dispositionRetry, disposition)
	assert.Equal(t, 2, item.Retries)

	disposition = retryOrFail(item)
	assert.Equal(t, dispositionFailed, disposition)
}

func TestRateLimitDurationConvertsSecondsToDuration(t *testing.T) {
	job := &models.CrawlJob{RateLimitSeconds: 2.5}
	assert.Equal(t, 2500*time.Millisecond, rateLimitDuration(job))
}

func TestRateLimitDurationDefaultsWhenZeroOrNegative(t *testing.T) {
	assert.Equal(t, time.Second, rateLimitDuration(&models.CrawlJob{RateLimitSeconds: 0}))
	assert.Equal(t, time.Second, rateLimitDuration(&models.CrawlJob{RateLimitSeconds: -1}))
}

func TestIsBlockedMatchesFixedDenylistCaseInsensitively(t *testing.T) {
	assert.True(t, isBlocked("https://example.com/Login"))
	assert.True(t, isBlocked("mailto:someone@example.com"))
	assert.True(t, isBlocked("https://www.Facebook.com/share"))
	assert.True(t, isBlocked("https://example.com/admin/dashboard"))
	assert.True(t, isBlocked("https://www.Reddit.com/r/golang"))
	assert.True(t, isBlocked("https://example.com/article?utm=addtoany.com"))
	assert.False(t, isBlocked("https://example.com/articles/allowed"))
}

func TestContainsChecksAllowedDomains(t *testing.T) {
	assert.True(t, contains([]string{"example.com", "other.com"}, "example.com"))
	assert.False(t, contains([]string{"example.com"}, "third.com"))
	assert.False(t, contains(nil, "example.com"))
}

func TestDiscoverChildrenStopsAtMaxDepth(t *testing.T) {
	job := &models.CrawlJob{MaxDepth: 1, MaxPages: 10, PagesCrawled: 0}
	item := &Item{URL: "https://example.com/page", Depth: 1}
	extracted := &extract.Extracted{Links: []string{"https://example.com/child"}}

	children := discoverChildren(job, item, extracted, Deps{})
	assert.Nil(t, children)
}

func TestDiscoverChildrenStopsWhenNoPagesRemain(t *testing.T) {
	job := &models.CrawlJob{MaxDepth: 5, MaxPages: 3, PagesCrawled: 3}
	item := &Item{URL: "https://example.com/page", Depth: 0}
	extracted := &extract.Extracted{Links: []string{"https://example.com/child"}}

	children := discoverChildren(job, item, extracted, Deps{})
	assert.Nil(t, children)
}

// TestDiscoverChildrenEnforcesAllowedDomains exercises the finding #2 fix
// end-to-end: a link on a second seed's allowed domain survives, a link
// on a third, non-allowed domain is dropped, using the real SSRF guard
// and shared-state seen-set rather than fakes.
func TestDiscoverChildrenEnforcesAllowedDomains(t *testing.T) {
	state := sharedstate.New(filepath.Join(t.TempDir(), "state.json"), nil)
	d := Deps{
		Guard:       ssrf.NewGuard(),
		SharedState: state,
	}

	job := &models.CrawlJob{
		MaxDepth:      5,
		MaxPages:      10,
		PagesCrawled:  0,
		AllowExternal: false,
		AllowedDomains: []string{
			"93.184.216.34",
			"1.1.1.1",
		},
	}
	item := &Item{URL: "https://93.184.216.34/page", Depth: 0}
	extracted := &extract.Extracted{
		Links: []string{
			"https://1.1.1.1/allowed-child",
			"https://8.8.8.8/not-allowed-child",
		},
	}

	children := discoverChildren(job, item, extracted, d)

	assert.Len(t, children, 1)
	assert.Equal(t, "https://1.1.1.1/allowed-child", children[0].URL)
}

func TestDiscoverChildrenAllowsExternalWhenJobPermitsIt(t *testing.T) {
	state := sharedstate.New(filepath.Join(t.TempDir(), "state.json"), nil)
	d := Deps{
		Guard:       ssrf.NewGuard(),
		SharedState: state,
	}

	job := &models.CrawlJob{
		MaxDepth:      5,
		MaxPages:      10,
		AllowExternal: true,
		AllowedDomains: []string{
			"93.184.216.34",
		},
	}
	item := &Item{URL: "https://93.184.216.34/page", Depth: 0}
	extracted := &extract.Extracted{Links: []string{"https://8.8.8.8/anywhere"}}

	children := discoverChildren(job, item, extracted, d)
	assert.Len(t, children, 1)
}
