// Package curator orchestrates relevance scoring: resolve topic embeddings,
// score every item, filter by threshold, sort, cap.
package curator

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/models"
	"github.com/ternarybob/gleaner/internal/services/embeddings"
	"github.com/ternarybob/gleaner/internal/services/scoring"
)

// Service is the curation pipeline stage.
type Service struct {
	store  *embeddings.Store
	scorer *scoring.Scorer
	logger arbor.ILogger
}

// NewService creates a curation service over the embedding store.
func NewService(store *embeddings.Store, scorer *scoring.Scorer, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		scorer: scorer,
		logger: logger,
	}
}

// Curate scores items against topics and returns the relevant subset,
// ordered by descending relevance. Ties keep input order (stable sort);
// arrival order has no defined priority beyond score.
//
// An empty topic set yields an empty result: no relevance is definable
// without topics. maxCount <= 0 means uncapped. An item whose scoring call
// fails after retries is dropped with a warning, never aborting the run.
func (s *Service) Curate(ctx context.Context, items []models.Item, topics []string, minScore float64, maxCount int) ([]models.Item, error) {
	if len(topics) == 0 {
		s.logger.Warn().Msg("No topics configured, nothing to curate")
		return []models.Item{}, nil
	}
	if len(items) == 0 {
		return []models.Item{}, nil
	}

	topicVectors, err := s.resolveTopicVectors(ctx, topics)
	if err != nil {
		return nil, err
	}

	scored := make([]models.Item, 0, len(items))
	dropped := 0
	for _, item := range items {
		score, err := s.scorer.Relevance(ctx, item.Title, topicVectors)
		if err != nil {
			dropped++
			s.logger.Warn().Err(err).Str("id", item.ID).Str("title", item.Title).Msg("Dropping unscorable item")
			continue
		}
		item.RelevanceScore = &score
		scored = append(scored, item)
	}
	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("Some items could not be scored")
	}

	filtered := scored[:0]
	for _, item := range scored {
		if item.Score() >= minScore {
			filtered = append(filtered, item)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score() > filtered[j].Score()
	})

	if maxCount > 0 && len(filtered) > maxCount {
		filtered = filtered[:maxCount]
	}

	s.logger.Info().
		Int("scored", len(scored)).
		Int("curated", len(filtered)).
		Float64("min_score", minScore).
		Msg("Curation complete")

	return filtered, nil
}

// resolveTopicVectors fetches one embedding per topic via the cache. Topic
// embeddings are a run precondition: a topic that cannot be embedded after
// retries fails the run, since every item would score against an incomplete
// topic set.
func (s *Service) resolveTopicVectors(ctx context.Context, topics []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(topics))
	for _, topic := range topics {
		vec, err := s.store.GetOrCompute(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("failed to embed topic %q: %w", topic, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}
