package badger

import (
	"context"
	"errors"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStorage(t *testing.T) interfaces.EmbeddingStorage {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(tmpDir).WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewEmbeddingStorage(db, arbor.NewLogger())
}

func TestEmbeddingStoragePutGet(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	vector := []float32{0.1, -0.2, 0.3}
	if err := storage.Put(ctx, "test-embed:0123456789abcdef", "test-embed", vector); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := storage.Get(ctx, "test-embed:0123456789abcdef")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != len(vector) {
		t.Fatalf("got %d values, want %d", len(got), len(vector))
	}
	for i := range vector {
		if got[i] != vector[i] {
			t.Errorf("value %d = %v, want %v", i, got[i], vector[i])
		}
	}
}

func TestEmbeddingStorageGetMissingKey(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.Get(context.Background(), "test-embed:ffffffffffffffff")
	if !errors.Is(err, interfaces.ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
}

func TestEmbeddingStoragePutExistingKeyIsNoop(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	first := []float32{1, 2, 3}
	if err := storage.Put(ctx, "test-embed:aaaa000011112222", "test-embed", first); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := storage.Put(ctx, "test-embed:aaaa000011112222", "test-embed", []float32{9, 9, 9}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := storage.Get(ctx, "test-embed:aaaa000011112222")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got[0] != 1 {
		t.Errorf("stored value changed on rewrite: %v, want original", got)
	}
}

func TestEmbeddingStorageCount(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	count, err := storage.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	for _, key := range []string{"test-embed:aaaa", "test-embed:bbbb", "test-embed:cccc"} {
		if err := storage.Put(ctx, key, "test-embed", []float32{1}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	count, err = storage.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
