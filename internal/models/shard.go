package models

import (
	"sync"
	"time"
)

// ShardEntry describes one hourly JSONL shard file tracked by the
// persistent ShardIndex (spec §4.4).
type ShardEntry struct {
	Name      string    `json:"name"` // crawl-train-YYYYMMDD-HH.jsonl
	Records   int       `json:"records"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Archived  bool      `json:"archived"`
}

// ShardIndex is the durable, ordered sequence of shard metadata.
type ShardIndex struct {
	Shards []ShardEntry `json:"shards"`
}

// HostState tracks per-host fairness bookkeeping in process memory
// (spec §3: host -> mutex, host -> ready_at). The mutex itself lives in
// the Host Coordinator; this struct is the serializable half used for
// introspection/metrics.
type HostState struct {
	Host    string    `json:"host"`
	ReadyAt time.Time `json:"ready_at"`
}

// MaxBackoffWindow is the cap on how far in the future ReadyAt may be
// pushed above "now" (spec §3: "cap on backoff window: 60s above now").
const MaxBackoffWindow = 60 * time.Second

// CategoryMetrics holds the per-category counters from spec §3. The
// counters are mutated concurrently by every worker goroutine
// processing that category's items, so all access goes through the
// Inc*/Snapshot methods rather than the fields directly.
type CategoryMetrics struct {
	mu sync.Mutex

	PagesCrawled int       `json:"pages_crawled"`
	PagesFailed  int       `json:"pages_failed"`
	Requests429  int       `json:"requests_429"`
	Requests5xx  int       `json:"requests_5xx"`
	LastErrorAt  time.Time `json:"last_error_at,omitempty"`
}

// CategoryMetricsSnapshot is a lock-free, point-in-time copy of
// CategoryMetrics safe to pass around and serialize by value.
type CategoryMetricsSnapshot struct {
	PagesCrawled int       `json:"pages_crawled"`
	PagesFailed  int       `json:"pages_failed"`
	Requests429  int       `json:"requests_429"`
	Requests5xx  int       `json:"requests_5xx"`
	LastErrorAt  time.Time `json:"last_error_at,omitempty"`
}

// IncPagesCrawled records one more successfully crawled page.
func (c *CategoryMetrics) IncPagesCrawled() {
	c.mu.Lock()
	c.PagesCrawled++
	c.mu.Unlock()
}

// IncPagesFailed records one more permanently failed page.
func (c *CategoryMetrics) IncPagesFailed(at time.Time) {
	c.mu.Lock()
	c.PagesFailed++
	c.LastErrorAt = at
	c.mu.Unlock()
}

// IncRequests429 records one more throttled response.
func (c *CategoryMetrics) IncRequests429(at time.Time) {
	c.mu.Lock()
	c.Requests429++
	c.LastErrorAt = at
	c.mu.Unlock()
}

// IncRequests5xx records one more server-error response.
func (c *CategoryMetrics) IncRequests5xx(at time.Time) {
	c.mu.Lock()
	c.Requests5xx++
	c.LastErrorAt = at
	c.mu.Unlock()
}

// Snapshot returns a lock-free copy of the current counters.
func (c *CategoryMetrics) Snapshot() CategoryMetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CategoryMetricsSnapshot{
		PagesCrawled: c.PagesCrawled,
		PagesFailed:  c.PagesFailed,
		Requests429:  c.Requests429,
		Requests5xx:  c.Requests5xx,
		LastErrorAt:  c.LastErrorAt,
	}
}

// Metrics aggregates CategoryMetrics per job category.
type Metrics struct {
	User       CategoryMetrics `json:"user"`
	Auto       CategoryMetrics `json:"auto"`
	Background CategoryMetrics `json:"background"`
}

// For selects the CategoryMetrics bucket matching a Category.
func (m *Metrics) For(cat Category) *CategoryMetrics {
	switch cat {
	case CategoryUser:
		return &m.User
	case CategoryAuto:
		return &m.Auto
	default:
		return &m.Background
	}
}

// MetricsSnapshot is a lock-free, point-in-time copy of Metrics, safe
// to copy by value (the Manager's metrics snapshot, spec §4.11).
type MetricsSnapshot struct {
	User       CategoryMetricsSnapshot `json:"user"`
	Auto       CategoryMetricsSnapshot `json:"auto"`
	Background CategoryMetricsSnapshot `json:"background"`
}

// Snapshot returns a lock-free copy of every category's counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		User:       m.User.Snapshot(),
		Auto:       m.Auto.Snapshot(),
		Background: m.Background.Snapshot(),
	}
}
