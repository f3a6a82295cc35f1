package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/interfaces"
	"github.com/ternarybob/gleaner/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// EmbeddingStorage implements the EmbeddingStorage interface for Badger.
// It is the durable half of the content-addressed embedding cache: exact-key
// lookup only, no eviction.
type EmbeddingStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEmbeddingStorage creates a new EmbeddingStorage instance
func NewEmbeddingStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EmbeddingStorage {
	return &EmbeddingStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a cached vector by key
func (s *EmbeddingStorage) Get(ctx context.Context, key string) ([]float32, error) {
	var record models.EmbeddingRecord
	err := s.db.Store().Get(key, &record)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	return record.Vector, nil
}

// Put stores a vector under key. Existing keys are left untouched: the value
// for a key is immutable once written.
func (s *EmbeddingStorage) Put(ctx context.Context, key string, model string, vector []float32) error {
	record := models.EmbeddingRecord{
		Key:       key,
		Model:     model,
		Vector:    vector,
		CreatedAt: time.Now().UTC(),
	}

	err := s.db.Store().Insert(key, &record)
	if err == badgerhold.ErrKeyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	return nil
}

// Count returns the number of cached embeddings
func (s *EmbeddingStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.EmbeddingRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return int(count), nil
}
