// Package kv wraps an embedded Badger database (via badgerhold) as a
// small key/value secrets store, used exclusively to resolve LLM
// provider API keys (spec §4.8/§6.3) the way the teacher's
// storage/badger package backs interfaces.KeyValueStorage.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// ErrKeyNotFound is returned when a secret key has no stored value.
var ErrKeyNotFound = errors.New("kv: key not found")

// Pair is the stored record shape for a single secret.
type Pair struct {
	Key       string    `json:"key" badgerhold:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a Badger-backed secrets store.
type Store struct {
	db     *badgerhold.Store
	logger arbor.ILogger
}

// Config configures the embedded database location.
type Config struct {
	Path           string
	ResetOnStartup bool
}

// Open opens (creating if absent) the Badger database at cfg.Path.
func Open(cfg Config, logger arbor.ILogger) (*Store, error) {
	if cfg.ResetOnStartup {
		if _, err := os.Stat(cfg.Path); err == nil {
			if logger != nil {
				logger.Debug().Str("path", cfg.Path).Msg("deleting existing kv store (reset_on_startup=true)")
			}
			if err := os.RemoveAll(cfg.Path); err != nil && logger != nil {
				logger.Warn().Err(err).Str("path", cfg.Path).Msg("failed to delete kv store directory")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create kv store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = cfg.Path
	options.ValueDir = cfg.Path
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get returns the secret value for key (case-insensitive).
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var pair Pair
	err := s.db.Get(normalizeKey(key), &pair)
	if err == badgerhold.ErrNotFound {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get key: %w", err)
	}
	return pair.Value, nil
}

// Set inserts or updates a secret value, preserving CreatedAt on update.
func (s *Store) Set(ctx context.Context, key, value string) error {
	normalized := normalizeKey(key)
	now := time.Now()

	pair := Pair{Key: normalized, Value: value, CreatedAt: now, UpdatedAt: now}

	var existing Pair
	if err := s.db.Get(normalized, &existing); err == nil {
		pair.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Upsert(normalized, &pair); err != nil {
		return fmt.Errorf("set key: %w", err)
	}
	return nil
}

// ResolveAPIKey resolves credentials for an LLM provider: a
// provider-specific key (e.g. "claude-api-key") takes precedence over
// the named envVar fallback, mirroring common.ResolveAPIKey's
// KV-then-environment resolution order.
func (s *Store) ResolveAPIKey(ctx context.Context, providerKey, envVar string) (string, error) {
	if s != nil {
		if value, err := s.Get(ctx, providerKey); err == nil && value != "" {
			return value, nil
		}
	}
	if envVar != "" {
		if value := os.Getenv(envVar); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: no credential for %q (env %q)", ErrKeyNotFound, providerKey, envVar)
}
