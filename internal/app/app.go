// Package app wires the services together and runs the curation pipeline
// end to end: ingest, dedupe, score, select, enrich, deliver, record.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/common"
	"github.com/ternarybob/gleaner/internal/models"
	"github.com/ternarybob/gleaner/internal/services/curator"
	"github.com/ternarybob/gleaner/internal/services/digest"
	"github.com/ternarybob/gleaner/internal/services/embeddings"
	"github.com/ternarybob/gleaner/internal/services/enrich"
	"github.com/ternarybob/gleaner/internal/services/feeds"
	"github.com/ternarybob/gleaner/internal/services/llm"
	"github.com/ternarybob/gleaner/internal/services/rerank"
	"github.com/ternarybob/gleaner/internal/services/scoring"
	slackpost "github.com/ternarybob/gleaner/internal/services/slack"
	badgerstore "github.com/ternarybob/gleaner/internal/storage/badger"
	"github.com/ternarybob/gleaner/internal/storage/ledger"
)

// App owns the wired pipeline and its durable stores.
type App struct {
	config *common.Config
	logger arbor.ILogger

	db       *badgerstore.BadgerDB
	ledger   *ledger.Ledger
	store    *embeddings.Store
	fetcher  *feeds.Fetcher
	curator  *curator.Service
	reranker *rerank.Reranker
	enricher *enrich.Enricher
	digest   *digest.Writer
	poster   *slackpost.Poster

	gemini *llm.GeminiService
	claude *llm.ClaudeService

	runMu sync.Mutex
}

// New builds the full pipeline from configuration. Provider clients are
// created eagerly so credential problems surface at startup, not mid-run.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding store: %w", err)
	}

	gemini, err := llm.NewGeminiService(&config.Gemini, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	claude, err := llm.NewClaudeService(&config.Claude, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	retryDelay, err := time.ParseDuration(config.Summarize.RetryDelay)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid retry delay: %w", err)
	}
	batchPause, err := time.ParseDuration(config.Summarize.BatchPause)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid batch pause: %w", err)
	}
	retry := llm.RetryPolicy{
		MaxAttempts: config.Summarize.RetryAttempts,
		Delay:       retryDelay,
	}

	store := embeddings.NewStore(gemini, badgerstore.NewEmbeddingStorage(db, logger), retry, logger)
	scorer := scoring.NewScorer(store)

	a := &App{
		config:   config,
		logger:   logger,
		db:       db,
		ledger:   ledger.Open(config.Storage.Ledger.Path, logger),
		store:    store,
		fetcher:  feeds.NewFetcher(logger),
		curator:  curator.NewService(store, scorer, logger),
		reranker: rerank.NewReranker(claude, config.Rerank.MaxTokens, logger),
		enricher: enrich.NewEnricher(claude, retry, enrich.Options{
			MaxConcurrent: config.Summarize.MaxConcurrent,
			BatchPause:    batchPause,
			MaxTokens:     config.Summarize.MaxTokens,
		}, logger),
		digest: digest.NewWriter(claude.WithModel(config.Claude.DigestModel), config.Claude.MaxTokens, logger),
		gemini: gemini,
		claude: claude,
	}

	if config.Slack.Enabled {
		messagePause, err := time.ParseDuration(config.Slack.MessagePause)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid message pause: %w", err)
		}
		poster, err := slackpost.NewPoster(config.Slack.Token, config.Slack.Channel, messagePause, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.poster = poster
	}

	return a, nil
}

// Run executes one curation run. Runs are serialized: if a scheduled run is
// still in flight when the next trigger fires, the new trigger is skipped
// rather than queued, so runs never pile up behind a slow provider.
func (a *App) Run(ctx context.Context) error {
	if !a.runMu.TryLock() {
		a.logger.Warn().Msg("Previous curation run still in progress, skipping")
		return nil
	}
	defer a.runMu.Unlock()

	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	runID := uuid.New().String()[:8]
	logger := a.logger.WithCorrelationId(runID)
	start := time.Now()

	feedURLs, err := feeds.LoadList(a.config.Feeds.File)
	if err != nil {
		return fmt.Errorf("failed to load feed list: %w", err)
	}
	topics, err := feeds.LoadList(a.config.Topics.File)
	if err != nil {
		return fmt.Errorf("failed to load topic list: %w", err)
	}

	timeframe, err := time.ParseDuration(a.config.Feeds.Timeframe)
	if err != nil {
		return fmt.Errorf("invalid timeframe: %w", err)
	}

	fetched := a.fetcher.FetchAll(ctx, feedURLs)
	fresh := feeds.FilterRecent(feeds.Deduplicate(fetched), timeframe, time.Now())
	candidates := a.ledger.FilterUnposted(fresh)

	logger.Info().
		Int("fetched", len(fetched)).
		Int("fresh", len(fresh)).
		Int("candidates", len(candidates)).
		Msg("Ingestion complete")

	if len(candidates) == 0 {
		logger.Info().Msg("No new items to curate")
		return nil
	}

	a.store.ResetStats()

	shortlistSize := a.config.Curation.MaxItems
	if a.config.Rerank.Enabled {
		shortlistSize = a.config.Rerank.PoolSize
		if shortlistSize <= 0 {
			shortlistSize = 3 * a.config.Curation.MaxItems
		}
	}

	curated, err := a.curator.Curate(ctx, candidates, topics, a.config.Curation.MinScore, shortlistSize)
	if err != nil {
		return fmt.Errorf("curation failed: %w", err)
	}
	if len(curated) == 0 {
		logger.Info().Msg("No items met the relevance threshold")
		return nil
	}

	if a.config.Rerank.Enabled {
		curated = a.reranker.Select(ctx, curated, topics, a.config.Rerank.Guidance, a.config.Curation.MaxItems)
	}

	enriched, err := a.enricher.EnrichAll(ctx, curated, topics)
	if err != nil {
		return fmt.Errorf("enrichment failed: %w", err)
	}

	intro := a.digest.Intro(ctx, enriched, topics)

	// Record whatever actually went out, even when delivery failed partway,
	// so a retry never re-posts the messages that did land.
	posted, deliverErr := a.deliver(ctx, logger, intro, enriched)
	if len(posted) > 0 {
		if err := a.ledger.MarkBatchPosted(posted); err != nil {
			logger.Error().Err(err).Msg("Failed to persist posted-item ledger")
		}
	}
	if deliverErr != nil {
		return deliverErr
	}

	stats := a.store.Stats()
	logger.Info().
		Int("delivered", len(posted)).
		Int64("cache_hits", stats.Hits).
		Int64("cache_misses", stats.Misses).
		Int("ledger_size", a.ledger.Size()).
		Dur("duration", time.Since(start)).
		Msg("Curation run complete")

	return nil
}

// deliver sends the batch to Slack when enabled, otherwise logs it. Either
// way it returns the item IDs to record as posted.
func (a *App) deliver(ctx context.Context, logger arbor.ILogger, intro string, items []models.Item) ([]string, error) {
	if a.poster != nil {
		posted, err := a.poster.PostDigest(ctx, intro, items)
		if err != nil {
			return posted, fmt.Errorf("delivery failed: %w", err)
		}
		return posted, nil
	}

	logger.Info().Str("digest", intro).Msg("Slack delivery disabled, logging digest")
	posted := make([]string, 0, len(items))
	for _, item := range items {
		summary := ""
		if item.Summary != nil {
			summary = *item.Summary
		}
		logger.Info().
			Str("title", item.Title).
			Str("source", item.SourceName).
			Float64("score", item.Score()).
			Str("summary", summary).
			Msg("Curated item")
		if item.ID != "" {
			posted = append(posted, item.ID)
		}
	}
	return posted, nil
}

// Close releases provider clients and the embedding store.
func (a *App) Close() error {
	a.gemini.Close()
	a.claude.Close()
	return a.db.Close()
}
