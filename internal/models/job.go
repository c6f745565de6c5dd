// Package models defines the core data types of the focused crawling
// pipeline: job, result, shared-state and shard index records.
package models

import (
	"net/url"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a CrawlJob.
type JobStatus string

const (
	JobStatusQueued          JobStatus = "queued"
	JobStatusRunning         JobStatus = "running"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusPartialComplete JobStatus = "partial_complete"
	JobStatusFailed          JobStatus = "failed"
)

// Priority controls which of the two dispatch queues a job's URLs land in.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// Category buckets a job for metrics and fairness accounting.
type Category string

const (
	CategoryUser       Category = "user"
	CategoryAuto       Category = "auto"
	CategoryBackground Category = "background"
)

// CrawlJob is the unit of work submitted by a client. Configuration is
// captured at creation time; only the assigned worker mutates it afterward.
type CrawlJob struct {
	ID             string `json:"id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	Keywords  []string `json:"keywords" validate:"required,min=1"`
	Seeds     []string `json:"seeds" validate:"required,min=1"`
	MaxDepth  int      `json:"max_depth" validate:"gte=0,lte=5"`
	MaxPages  int      `json:"max_pages" validate:"gte=1,lte=500"`

	RelevanceThreshold float64 `json:"relevance_threshold" validate:"gte=0.1,lte=0.95"`
	RateLimitSeconds   float64 `json:"rate_limit_seconds" validate:"gte=0.1,lte=10.0"`
	AllowExternal      bool    `json:"allow_external"`

	UserContext string                 `json:"user_context,omitempty"`
	RequestedBy string                 `json:"requested_by,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	Priority Priority `json:"priority"`
	Category Category `json:"category"`

	OllamaAssisted bool   `json:"ollama_assisted"`
	OllamaQuery    string `json:"ollama_query,omitempty"`

	Status        JobStatus `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	PagesCrawled  int       `json:"pages_crawled"`
	Results       []string  `json:"results"`
	Error         string    `json:"error,omitempty"`

	AllowedDomains []string `json:"allowed_domains"`

	// BlockedSeeds records seeds rejected by the SSRF guard at job creation
	// (spec §7 names the "ssrf-block" error kind but the base CrawlJob has
	// no field to surface which seeds were dropped without failing the
	// whole job).
	BlockedSeeds []string `json:"blocked_seeds,omitempty"`
}

// DeriveCategory computes CrawlJob.Category per spec §3: "user" if
// requested_by == "user" OR priority == high, else "auto" if
// requested_by is "auto_crawler" or "auto", else "background".
func DeriveCategory(requestedBy string, priority Priority) Category {
	if requestedBy == "user" || priority == PriorityHigh {
		return CategoryUser
	}
	if requestedBy == "auto_crawler" || requestedBy == "auto" {
		return CategoryAuto
	}
	return CategoryBackground
}

// SeedHosts returns the lowercase hostnames of the job's seed URLs,
// suitable for AllowedDomains.
func SeedHosts(seeds []string) []string {
	hosts := make([]string, 0, len(seeds))
	seen := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		u, err := url.Parse(strings.TrimSpace(seed))
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	return hosts
}

// MetadataTags extracts the "tags" entry from Metadata for GuessTags,
// tolerating a []string, a []interface{} of strings (the shape a
// decoded JSON request body produces), or a single string.
func (j *CrawlJob) MetadataTags() []string {
	if j.Metadata == nil {
		return nil
	}
	switch v := j.Metadata["tags"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Touch advances UpdatedAt; terminal transitions also stamp CompletedAt.
func (j *CrawlJob) Touch(now time.Time) {
	j.UpdatedAt = now
	switch j.Status {
	case JobStatusCompleted, JobStatusPartialComplete, JobStatusFailed:
		if j.CompletedAt.IsZero() {
			j.CompletedAt = now
		}
	}
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *CrawlJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusPartialComplete, JobStatusFailed:
		return true
	default:
		return false
	}
}
