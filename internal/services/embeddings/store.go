// Package embeddings provides the content-addressed embedding cache that
// makes semantic scoring idempotent and cheap on repeat runs.
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/interfaces"
	"github.com/ternarybob/gleaner/internal/services/llm"
)

// Stats holds per-run cache counters. Observability only: the counters have
// no behavioral effect and reset at the start of each curation run.
type Stats struct {
	Hits   int64
	Misses int64
}

// Store is the get-or-compute embedding cache. Lookups are keyed by
// "<model>:<16-hex sha256 prefix of the text>", so entries are partitioned
// per model and collisions are cryptographically negligible at expected
// corpus sizes. On a hit the stored vector is returned with no provider
// call; on a miss the provider is called once for that text and the result
// is persisted before being returned.
//
// Concurrent callers missing on the same key may issue redundant provider
// calls; the stored value for a key is always identical once computed, so
// last-write-wins is safe and no per-key mutual exclusion is attempted.
type Store struct {
	provider interfaces.EmbeddingProvider
	storage  interfaces.EmbeddingStorage
	retry    llm.RetryPolicy
	logger   arbor.ILogger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore creates a new embedding store over the given provider and
// durable storage.
func NewStore(provider interfaces.EmbeddingProvider, storage interfaces.EmbeddingStorage, retry llm.RetryPolicy, logger arbor.ILogger) *Store {
	return &Store{
		provider: provider,
		storage:  storage,
		retry:    retry,
		logger:   logger,
	}
}

// CacheKey derives the storage key for (model, text): the model identifier
// followed by the first 16 hex characters of sha256(text).
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])[:16]
}

// GetOrCompute returns the embedding for text, from cache when present,
// computing and persisting it otherwise. Provider calls go through the
// retry policy; a storage write failure is logged and the computed vector
// is still returned.
func (s *Store) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	model := s.provider.ModelName()
	key := CacheKey(model, text)

	cached, err := s.storage.Get(ctx, key)
	if err == nil {
		s.hits.Add(1)
		return cached, nil
	}
	if !errors.Is(err, interfaces.ErrKeyNotFound) {
		s.logger.Warn().Err(err).Str("key", key).Msg("Embedding cache read failed, recomputing")
	}

	s.misses.Add(1)

	var vector []float32
	err = s.retry.Do(ctx, "embedding call", func() error {
		v, embedErr := s.provider.Embed(ctx, text)
		if embedErr != nil {
			return embedErr
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute embedding: %w", err)
	}

	if err := s.storage.Put(ctx, key, model, vector); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist embedding, continuing with computed vector")
	}

	return vector, nil
}

// Stats returns the per-run hit/miss counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}

// ResetStats zeroes the per-run counters. Called at the start of each
// curation run so counters never leak across runs.
func (s *Store) ResetStats() {
	s.hits.Store(0)
	s.misses.Store(0)
}

// CacheSize returns the number of entries in durable storage, for
// diagnostics.
func (s *Store) CacheSize(ctx context.Context) (int, error) {
	return s.storage.Count(ctx)
}
