// Package scoring ranks item text against a topic set via vector similarity.
package scoring

import (
	"context"
	"math"
	"strings"

	"github.com/ternarybob/gleaner/internal/services/embeddings"
)

// CosineSimilarity computes dot(a,b) / (|a|*|b|), in [-1, 1]. When either
// vector has zero norm the result is exactly 0: a deliberate degenerate-case
// policy, not an error.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MaxSimilarity returns the maximum cosine similarity between vec and any of
// the topic vectors, floored at 0.
func MaxSimilarity(vec []float32, topicVectors [][]float32) float64 {
	maxSim := 0.0
	for _, topicVec := range topicVectors {
		if sim := CosineSimilarity(vec, topicVec); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}

// Scorer computes item-to-topic-set relevance using cached embeddings.
type Scorer struct {
	store *embeddings.Store
}

// NewScorer creates a scorer over the embedding store.
func NewScorer(store *embeddings.Store) *Scorer {
	return &Scorer{store: store}
}

// Relevance scores title against the topic vectors, returning a value in
// [0, 100]: the maximum cosine similarity to any topic, scaled by 100.
//
// Only the title feeds the signal; body text is deliberately excluded to
// keep the embedding call cheap and focused on headline semantics. An empty
// title scores exactly 0 without invoking the embedding provider.
func (s *Scorer) Relevance(ctx context.Context, title string, topicVectors [][]float32) (float64, error) {
	if strings.TrimSpace(title) == "" {
		return 0.0, nil
	}

	vec, err := s.store.GetOrCompute(ctx, title)
	if err != nil {
		return 0, err
	}

	return MaxSimilarity(vec, topicVectors) * 100, nil
}
