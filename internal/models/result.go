package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ResultStatus tracks a CrawlResult through scoring and publication.
type ResultStatus string

const (
	ResultStatusPending   ResultStatus = "pending"
	ResultStatusCrawled   ResultStatus = "crawled"
	ResultStatusPublished ResultStatus = "published"
	ResultStatusError     ResultStatus = "error"
)

// CrawlFeedback is a single rating/comment attached to a CrawlResult.
type CrawlFeedback struct {
	Score     float64   `json:"score" validate:"gte=0,lte=5"`
	Comment   string    `json:"comment,omitempty"`
	Source    string    `json:"source"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// CrawlResult is the content record produced by the worker pipeline for a
// single fetched URL.
type CrawlResult struct {
	ID            string `json:"id"`
	JobID         string `json:"job_id"`
	URL           string `json:"url"`
	SourceDomain  string `json:"source_domain"`
	ParentURL     string `json:"parent_url,omitempty"`
	Depth         int    `json:"depth"`

	Title           string     `json:"title"`
	Headline        string     `json:"headline,omitempty"`
	Content         string     `json:"content"`
	Excerpt         string     `json:"excerpt,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	PublishDate     *time.Time `json:"publish_date,omitempty"`
	NormalizedText  string     `json:"normalized_text,omitempty"`
	ContentHash     string     `json:"content_hash"`
	TokensEst       int        `json:"tokens_est"`

	ExtractedContentOllama string `json:"extracted_content_ollama,omitempty"`

	Score           float64  `json:"score"`
	KeywordsMatched []string `json:"keywords_matched"`
	Tags            []string `json:"tags"`

	Feedback         []CrawlFeedback `json:"feedback,omitempty"`
	RatingCount      int             `json:"rating_count"`
	RatingAverage    float64         `json:"rating_average"`
	Confirmations    int             `json:"confirmations"`

	PostedAt *time.Time   `json:"posted_at,omitempty"`
	PostID   string       `json:"post_id,omitempty"`
	TopicID  string       `json:"topic_id,omitempty"`
	Status   ResultStatus `json:"status"`

	SizeBytes int `json:"size_bytes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ResponseTimeMS, LinksFound and LinksFollowed are informational
	// per-fetch accounting carried from the teacher's
	// CrawlerDocumentMetadata; they never gate scoring or storage.
	ResponseTimeMS int `json:"response_time_ms,omitempty"`
	LinksFound     int `json:"links_found,omitempty"`
	LinksFollowed  int `json:"links_followed,omitempty"`
}

// NewDocumentID generates a unique CrawlResult identifier, mirroring the
// teacher's common.NewDocumentID ("doc_" + uuid).
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// GuessTags implements the tag derivation dropped from the distilled
// spec but present in the original crawler's _guess_tags: the union of
// matched keywords and any job-metadata tags, lowercased and sorted.
func GuessTags(matchedKeywords, additional []string) []string {
	set := make(map[string]struct{}, len(matchedKeywords)+len(additional))
	for _, kw := range matchedKeywords {
		if tag := strings.ToLower(strings.TrimSpace(kw)); tag != "" {
			set[tag] = struct{}{}
		}
	}
	for _, tag := range additional {
		if t := strings.ToLower(strings.TrimSpace(tag)); t != "" {
			set[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// NormalizeText collapses whitespace in raw extracted text, matching the
// spec's normalized_text definition used for hashing and excerpting.
func NormalizeText(raw string) string {
	fields := strings.FieldsFunc(raw, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// ComputeContentHash returns the SHA-256 hex digest over normalized text.
func ComputeContentHash(normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}

// EstimateTokens approximates token count as len(normalized)/4, per spec.
func EstimateTokens(normalizedText string) int {
	n := len(normalizedText) / 4
	if n < 0 {
		n = 0
	}
	return n
}

// Truncate returns s trimmed to at most n runes, matching the Headline
// (120) / Excerpt (420) bounds from spec §3.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RecomputeRatings derives RatingCount/RatingAverage/Confirmations from
// Feedback, per spec's "rating_average = mean(ratings.score) when
// rating_count > 0 else 0" invariant.
func (r *CrawlResult) RecomputeRatings() {
	r.RatingCount = len(r.Feedback)
	r.Confirmations = 0
	if r.RatingCount == 0 {
		r.RatingAverage = 0
		return
	}
	var sum float64
	for _, fb := range r.Feedback {
		sum += fb.Score
		if fb.Confirmed {
			r.Confirmations++
		}
	}
	r.RatingAverage = sum / float64(r.RatingCount)
}

// SizeInBytes returns the UTF-8 JSON size of the full result, per spec's
// size_bytes accounting rule.
func (r *CrawlResult) SizeInBytes() (int, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// SupersedesExisting reports whether this result should replace an
// existing record sharing its content_hash, per the Result Store
// dedup invariant: keep the higher score, or the later updated_at on a
// tie.
func (r *CrawlResult) SupersedesExisting(existing *CrawlResult) bool {
	if existing == nil {
		return true
	}
	if r.Score != existing.Score {
		return r.Score > existing.Score
	}
	return r.UpdatedAt.After(existing.UpdatedAt)
}
