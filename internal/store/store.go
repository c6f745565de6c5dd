// Package store implements the Result Store: a memory-bounded LRU of
// CrawlResult records keyed by ID, deduplicated by content hash (spec §4.3).
package store

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

type entry struct {
	result   *models.CrawlResult
	elem     *list.Element // position in lru, most-recently-used at front
}

// Store is the single mutex-protected in-memory result index.
type Store struct {
	mu sync.Mutex

	maxMemoryBytes int64
	currentUsage   int64

	byID          map[string]*entry
	byContentHash map[string]*entry
	lru           *list.List // holds result IDs, front = most recently used
}

// New returns an empty Store bounded by maxMemoryBytes
// (crawler_max_memory_bytes).
func New(maxMemoryBytes int64) *Store {
	return &Store{
		maxMemoryBytes: maxMemoryBytes,
		byID:           make(map[string]*entry),
		byContentHash:  make(map[string]*entry),
		lru:            list.New(),
	}
}

// Add implements spec §4.3's add(result) contract: size the record,
// dedup by content hash keeping the higher score / later update, then
// LRU-evict until the new entry fits the byte budget. It returns the
// ID of the record that ultimately survives the dedup (result's own ID
// when stored, or the existing record's ID when the duplicate was
// dropped), for callers that track per-job result IDs.
func (s *Store) Add(result *models.CrawlResult) (string, error) {
	size, err := result.SizeInBytes()
	if err != nil {
		return "", fmt.Errorf("size result: %w", err)
	}
	result.SizeBytes = size

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingEntry, ok := s.byContentHash[result.ContentHash]; ok {
		if !result.SupersedesExisting(existingEntry.result) {
			return existingEntry.result.ID, nil
		}
		s.removeLocked(existingEntry.result.ID)
	}

	for s.currentUsage+int64(size) > s.maxMemoryBytes && s.lru.Len() > 0 {
		oldest := s.lru.Back()
		oldestID := oldest.Value.(string)
		s.removeLocked(oldestID)
	}

	elem := s.lru.PushFront(result.ID)
	e := &entry{result: result, elem: elem}
	s.byID[result.ID] = e
	s.byContentHash[result.ContentHash] = e
	s.currentUsage += int64(size)
	return result.ID, nil
}

// Get returns the result for id and bumps its LRU recency.
func (s *Store) Get(id string) (*models.CrawlResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	s.lru.MoveToFront(e.elem)
	return e.result, true
}

// Update replaces the stored record for id, adjusting the usage delta.
func (s *Store) Update(id string, newResult *models.CrawlResult) error {
	size, err := newResult.SizeInBytes()
	if err != nil {
		return fmt.Errorf("size result: %w", err)
	}
	newResult.SizeBytes = size

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("store: no entry with id %q", id)
	}

	delete(s.byContentHash, old.result.ContentHash)
	s.currentUsage += int64(size) - int64(old.result.SizeBytes)

	old.result = newResult
	s.byContentHash[newResult.ContentHash] = old
	s.lru.MoveToFront(old.elem)
	return nil
}

// List returns every live entry matching predicate, most-recently-used
// first. Readers briefly hold the store mutex to snapshot.
func (s *Store) List(predicate func(*models.CrawlResult) bool) []*models.CrawlResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.CrawlResult
	for el := s.lru.Front(); el != nil; el = el.Next() {
		id := el.Value.(string)
		e := s.byID[id]
		if predicate == nil || predicate(e.result) {
			out = append(out, e.result)
		}
	}
	return out
}

// CurrentUsage returns the sum of size_bytes across all live entries.
func (s *Store) CurrentUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUsage
}

// removeLocked must be called with mu held.
func (s *Store) removeLocked(id string) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	s.lru.Remove(e.elem)
	delete(s.byID, id)
	delete(s.byContentHash, e.result.ContentHash)
	s.currentUsage -= int64(e.result.SizeBytes)
}
