// Package hostcoord implements the Host Coordinator: per-host mutex,
// randomized delay, and backoff windows on throttling/server errors
// (spec §3 HostState, §4.5).
package hostcoord

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

type hostEntry struct {
	mu      sync.Mutex
	readyAt time.Time
}

// Coordinator serializes fetches per host and tracks backoff windows. A
// registry mutex protects the host map; each host's own mutex is separate.
type Coordinator struct {
	registryMu sync.Mutex
	hosts      map[string]*hostEntry
}

// New returns an empty Coordinator.
func New() *Coordinator {
	return &Coordinator{hosts: make(map[string]*hostEntry)}
}

func (c *Coordinator) entry(host string) *hostEntry {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	h, ok := c.hosts[host]
	if !ok {
		h = &hostEntry{}
		c.hosts[host] = h
	}
	return h
}

// HostOf extracts the lowercase host from a URL for coordinator lookups.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Lease is held between Acquire and Release; it represents the exclusive
// per-host fetch slot plus whatever backoff/delay was applied to obtain it.
type Lease struct {
	host  string
	entry *hostEntry
}

// Acquire locks the host's mutex (serializing fetches to that host), waits
// out any scheduled backoff, then sleeps `rateLimit + uniform(0, rateLimit*0.5)`
// jitter before returning, per spec §4.5. The caller must call Release.
func (c *Coordinator) Acquire(ctx context.Context, host string, rateLimit time.Duration) (*Lease, error) {
	h := c.entry(host)
	h.mu.Lock()

	if err := sleepUntil(ctx, h.readyAt); err != nil {
		h.mu.Unlock()
		return nil, err
	}

	jitter := time.Duration(rand.Int63n(int64(rateLimit)/2 + 1))
	if err := sleepFor(ctx, rateLimit+jitter); err != nil {
		h.mu.Unlock()
		return nil, err
	}

	return &Lease{host: host, entry: h}, nil
}

// Release unlocks the host mutex. Call exactly once after Acquire,
// regardless of fetch outcome.
func (l *Lease) Release() {
	if l == nil || l.entry == nil {
		return
	}
	l.entry.mu.Unlock()
}

// BackoffThrottled schedules a 429 backoff: ready_at = max(ready_at, now) + 10s,
// capped at now + 60s.
func (l *Lease) BackoffThrottled() {
	l.entry.readyAt = capBackoff(l.entry.readyAt, 10*time.Second)
}

// BackoffServerError schedules a 5xx backoff: +5s, same cap.
func (l *Lease) BackoffServerError() {
	l.entry.readyAt = capBackoff(l.entry.readyAt, 5*time.Second)
}

// ClearBackoff clears the host's backoff entry after a successful fetch.
func (l *Lease) ClearBackoff() {
	l.entry.readyAt = time.Time{}
}

func capBackoff(current time.Time, delta time.Duration) time.Time {
	now := time.Now()
	base := current
	if base.Before(now) {
		base = now
	}
	next := base.Add(delta)
	ceiling := now.Add(models.MaxBackoffWindow)
	if next.After(ceiling) {
		next = ceiling
	}
	return next
}

func sleepUntil(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	return sleepFor(ctx, d)
}

func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
