package models

// SharedStateSnapshot is the on-disk shape of the Shared State component
// (spec §3/§4.2): a process-wide seen-URL set and an idempotency-key to
// job-id map, flushed as a single JSON blob.
type SharedStateSnapshot struct {
	SeenURLs       map[string]bool   `json:"seen_urls"`
	IdempotencyMap map[string]string `json:"idempotency_map"`
}

// NewSharedStateSnapshot returns an empty snapshot.
func NewSharedStateSnapshot() *SharedStateSnapshot {
	return &SharedStateSnapshot{
		SeenURLs:       make(map[string]bool),
		IdempotencyMap: make(map[string]string),
	}
}
