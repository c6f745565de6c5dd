// Package sharedstate implements the process-wide Shared State component:
// the seen-URL set and the idempotency-key -> job-id map described in
// spec §4.2, persisted as a single flat JSON file.
package sharedstate

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

// flushEvery is the mutation count that triggers an automatic durable
// flush, per spec §4.2: "Auto-flush every 200 mutations".
const flushEvery = 200

// State guards SharedStateSnapshot behind a single mutex, matching spec's
// "serialization via a single mutex is acceptable" contract.
type State struct {
	mu   sync.Mutex
	data *models.SharedStateSnapshot
	path string
	log  arbor.ILogger

	mutationsSinceFlush int
}

// New loads state from path if present, starting empty on any read or
// parse failure (spec: "corruption -> start empty but keep the file for
// the next flush").
func New(path string, log arbor.ILogger) *State {
	s := &State{
		data: models.NewSharedStateSnapshot(),
		path: path,
		log:  log,
	}
	s.loadBestEffort()
	return s
}

func (s *State) loadBestEffort() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var snap models.SharedStateSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		if s.log != nil {
			s.log.Warn().Err(err).Str("path", s.path).Msg("shared state file corrupt, starting empty")
		}
		return
	}
	if snap.SeenURLs == nil {
		snap.SeenURLs = make(map[string]bool)
	}
	if snap.IdempotencyMap == nil {
		snap.IdempotencyMap = make(map[string]string)
	}
	s.data = &snap
}

// HashURL returns the SHA-1 hex digest of the trimmed URL string, the
// canonical seen-set key per spec §3.
func HashURL(rawURL string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(rawURL)))
	return hex.EncodeToString(sum[:])
}

// MarkSeen atomically inserts url_hash if absent, returning true only on
// the first insertion.
func (s *State) MarkSeen(urlHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.SeenURLs[urlHash] {
		return false
	}
	s.data.SeenURLs[urlHash] = true
	s.noteMutationLocked()
	return true
}

// HasSeen reports whether url_hash has already been marked.
func (s *State) HasSeen(urlHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SeenURLs[urlHash]
}

// RegisterJobForKey atomically writes key -> jobID; a no-op if key is
// already bound (spec: "no-op if key -> job_id already present").
func (s *State) RegisterJobForKey(key, jobID string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.IdempotencyMap[key]; exists {
		return
	}
	s.data.IdempotencyMap[key] = jobID
	s.noteMutationLocked()
}

// GetJobForKey returns the job id registered for an idempotency key, if any.
func (s *State) GetJobForKey(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobID, ok := s.data.IdempotencyMap[key]
	return jobID, ok
}

// noteMutationLocked must be called with mu held; triggers an auto-flush
// every flushEvery mutations.
func (s *State) noteMutationLocked() {
	s.mutationsSinceFlush++
	if s.mutationsSinceFlush >= flushEvery {
		s.flushLocked()
	}
}

// Flush durably writes state via write-temp-then-rename.
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *State) flushLocked() error {
	data, err := json.Marshal(s.data)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shared-state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	s.mutationsSinceFlush = 0
	return nil
}
