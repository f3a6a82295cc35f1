package interfaces

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by EmbeddingStorage.Get for an absent key.
var ErrKeyNotFound = errors.New("key not found")

// EmbeddingStorage is a durable exact-key vector store. It supports only
// exact-key lookup (no similarity search) and entries never expire.
type EmbeddingStorage interface {
	// Get returns the vector stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]float32, error)

	// Put stores a vector under key. Writing an existing key is a no-op:
	// values for a given key are always identical once computed.
	Put(ctx context.Context, key string, model string, vector []float32) error

	// Count returns the number of stored entries, for diagnostics only.
	Count(ctx context.Context) (int, error)
}
