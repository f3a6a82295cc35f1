package curator

import (
	"context"
	"fmt"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/interfaces"
	"github.com/ternarybob/gleaner/internal/models"
	"github.com/ternarybob/gleaner/internal/services/embeddings"
	"github.com/ternarybob/gleaner/internal/services/llm"
	"github.com/ternarybob/gleaner/internal/services/scoring"
)

type fakeProvider struct {
	vectors map[string][]float32
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector configured for %q", text)
	}
	return vec, nil
}

func (f *fakeProvider) ModelName() string { return "test-embed" }

type memStorage struct {
	m map[string][]float32
}

func (s *memStorage) Get(ctx context.Context, key string) ([]float32, error) {
	if vec, ok := s.m[key]; ok {
		return vec, nil
	}
	return nil, interfaces.ErrKeyNotFound
}

func (s *memStorage) Put(ctx context.Context, key, model string, vector []float32) error {
	s.m[key] = vector
	return nil
}

func (s *memStorage) Count(ctx context.Context) (int, error) { return len(s.m), nil }

func newTestService(vectors map[string][]float32) *Service {
	logger := arbor.NewLogger()
	store := embeddings.NewStore(&fakeProvider{vectors: vectors}, &memStorage{m: map[string][]float32{}},
		llm.RetryPolicy{MaxAttempts: 1}, logger)
	return NewService(store, scoring.NewScorer(store), logger)
}

func items(titles ...string) []models.Item {
	out := make([]models.Item, len(titles))
	for i, title := range titles {
		out[i] = models.Item{ID: fmt.Sprintf("https://example.com/%d", i), Title: title}
	}
	return out
}

func TestCurateOrdersByDescendingScore(t *testing.T) {
	// Topic sits on the x axis; titles land at decreasing angles to it.
	svc := newTestService(map[string][]float32{
		"databases":      {1, 0},
		"raft consensus": {0.9, 0.1},
		"paxos variants": {0.5, 0.5},
		"garden tips":    {0.05, 1},
	})

	curated, err := svc.Curate(context.Background(),
		items("garden tips", "paxos variants", "raft consensus"),
		[]string{"databases"}, 0, 0)
	if err != nil {
		t.Fatalf("Curate failed: %v", err)
	}

	if len(curated) != 3 {
		t.Fatalf("got %d items, want 3", len(curated))
	}
	for i := 1; i < len(curated); i++ {
		if curated[i].Score() > curated[i-1].Score() {
			t.Errorf("items not in descending score order: %v then %v",
				curated[i-1].Score(), curated[i].Score())
		}
	}
	if curated[0].Title != "raft consensus" {
		t.Errorf("top item = %q, want %q", curated[0].Title, "raft consensus")
	}
}

func TestCurateAppliesThresholdAndCap(t *testing.T) {
	svc := newTestService(map[string][]float32{
		"databases": {1, 0},
		"close":     {0.99, 0.01},
		"near":      {0.8, 0.2},
		"far":       {0.01, 1},
	})

	curated, err := svc.Curate(context.Background(),
		items("close", "near", "far"),
		[]string{"databases"}, 50, 1)
	if err != nil {
		t.Fatalf("Curate failed: %v", err)
	}

	if len(curated) != 1 {
		t.Fatalf("got %d items, want 1 (threshold plus cap)", len(curated))
	}
	if curated[0].Title != "close" {
		t.Errorf("kept item = %q, want %q", curated[0].Title, "close")
	}
	if curated[0].Score() < 50 {
		t.Errorf("kept item score = %v, want >= 50", curated[0].Score())
	}
}

func TestCurateThresholdIsInclusive(t *testing.T) {
	svc := newTestService(map[string][]float32{
		"topic": {1, 0},
		"same":  {1, 0},
	})

	curated, err := svc.Curate(context.Background(), items("same"), []string{"topic"}, 100, 0)
	if err != nil {
		t.Fatalf("Curate failed: %v", err)
	}
	if len(curated) != 1 {
		t.Errorf("item scoring exactly the threshold was filtered, want kept")
	}
}

func TestCurateRelevantItemBeatsIrrelevant(t *testing.T) {
	svc := newTestService(map[string][]float32{
		"distributed systems":      {1, 0.1, 0},
		"Raft consensus explained": {0.9, 0.2, 0.1},
		"Best pasta recipes":       {0.1, 0.1, 1},
	})

	curated, err := svc.Curate(context.Background(),
		items("Raft consensus explained", "Best pasta recipes"),
		[]string{"distributed systems"}, 50, 1)
	if err != nil {
		t.Fatalf("Curate failed: %v", err)
	}

	if len(curated) != 1 {
		t.Fatalf("got %d items, want 1", len(curated))
	}
	if curated[0].Title != "Raft consensus explained" {
		t.Errorf("kept %q, want the on-topic item", curated[0].Title)
	}
}

func TestCurateEmptyTopicsYieldsEmpty(t *testing.T) {
	svc := newTestService(map[string][]float32{})

	curated, err := svc.Curate(context.Background(), items("anything"), nil, 0, 0)
	if err != nil {
		t.Fatalf("Curate with no topics returned error: %v", err)
	}
	if len(curated) != 0 {
		t.Errorf("got %d items with no topics, want 0", len(curated))
	}
}

func TestCurateTopicEmbedFailureIsFatal(t *testing.T) {
	svc := newTestService(map[string][]float32{
		"known title": {1, 0},
	})

	if _, err := svc.Curate(context.Background(), items("known title"), []string{"unembeddable topic"}, 0, 0); err == nil {
		t.Fatal("expected error when a topic cannot be embedded, got nil")
	}
}

func TestCurateDropsUnscorableItems(t *testing.T) {
	svc := newTestService(map[string][]float32{
		"databases":  {1, 0},
		"good title": {0.9, 0.1},
	})

	curated, err := svc.Curate(context.Background(),
		items("good title", "unembeddable title"),
		[]string{"databases"}, 0, 0)
	if err != nil {
		t.Fatalf("Curate failed: %v", err)
	}
	if len(curated) != 1 {
		t.Fatalf("got %d items, want 1 (unscorable item dropped)", len(curated))
	}
	if curated[0].Title != "good title" {
		t.Errorf("kept item = %q, want %q", curated[0].Title, "good title")
	}
}

func TestCurateEmptyTitleScoresZero(t *testing.T) {
	svc := newTestService(map[string][]float32{
		"databases": {1, 0},
	})

	curated, err := svc.Curate(context.Background(),
		[]models.Item{{ID: "https://example.com/a", Title: ""}},
		[]string{"databases"}, 0.1, 0)
	if err != nil {
		t.Fatalf("Curate failed: %v", err)
	}
	if len(curated) != 0 {
		t.Errorf("untitled item passed a positive threshold, want filtered")
	}
}
