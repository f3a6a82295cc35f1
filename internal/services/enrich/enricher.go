// Package enrich generates per-item summaries through the completion model,
// batched to respect provider rate limits.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/interfaces"
	"github.com/ternarybob/gleaner/internal/models"
	"github.com/ternarybob/gleaner/internal/services/llm"
)

// Options controls enrichment pacing.
type Options struct {
	// MaxConcurrent is the batch size: at most this many completion calls
	// are in flight at once.
	MaxConcurrent int
	// BatchPause is the fixed delay between consecutive batches.
	BatchPause time.Duration
	// MaxTokens caps each summary completion.
	MaxTokens int
}

// Enricher produces summaries for curated items.
type Enricher struct {
	completer interfaces.Completer
	retry     llm.RetryPolicy
	opts      Options
	logger    arbor.ILogger
}

// NewEnricher creates an enricher over the completer.
func NewEnricher(completer interfaces.Completer, retry llm.RetryPolicy, opts Options, logger arbor.ILogger) *Enricher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Enricher{
		completer: completer,
		retry:     retry,
		opts:      opts,
		logger:    logger,
	}
}

// EnrichAll summarizes every item, processing them in fixed batches of
// MaxConcurrent with a pause between batches. Output order matches input
// order. Topics give the model the reader's frame of reference. A summary
// that still fails after retries is fatal for the run, but in-flight calls
// of the failing batch always settle before the error is returned, so no
// goroutine outlives this call.
func (e *Enricher) EnrichAll(ctx context.Context, items []models.Item, topics []string) ([]models.Item, error) {
	if len(items) == 0 {
		return []models.Item{}, nil
	}

	out := make([]models.Item, len(items))
	copy(out, items)

	start := time.Now()
	for batchStart := 0; batchStart < len(out); batchStart += e.opts.MaxConcurrent {
		batchEnd := batchStart + e.opts.MaxConcurrent
		if batchEnd > len(out) {
			batchEnd = len(out)
		}

		if batchStart > 0 && e.opts.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.opts.BatchPause):
			}
		}

		errs := make([]error, batchEnd-batchStart)
		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				summary, err := e.summarize(ctx, &out[i], topics)
				if err != nil {
					errs[i-batchStart] = fmt.Errorf("failed to summarize %q: %w", out[i].Title, err)
					return
				}
				out[i].Summary = &summary
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}

		e.logger.Debug().
			Int("batch_start", batchStart).
			Int("batch_size", batchEnd-batchStart).
			Msg("Summary batch complete")
	}

	e.logger.Info().
		Int("items", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Enrichment complete")

	return out, nil
}

func (e *Enricher) summarize(ctx context.Context, item *models.Item, topics []string) (string, error) {
	prompt := buildSummaryPrompt(item, topics)

	var summary string
	err := e.retry.Do(ctx, "summary call", func() error {
		resp, err := e.completer.Complete(ctx, prompt, e.opts.MaxTokens)
		if err != nil {
			return err
		}
		summary = strings.TrimSpace(resp)
		return nil
	})
	if err != nil {
		return "", err
	}

	return summary, nil
}

func buildSummaryPrompt(item *models.Item, topics []string) string {
	var b strings.Builder

	b.WriteString("Summarize the following item in 2-3 sentences for a reader scanning a daily digest. ")
	b.WriteString("Lead with what is new or useful. Plain prose, no preamble.\n")
	if len(topics) > 0 {
		fmt.Fprintf(&b, "Reader interests: %s\n", strings.Join(topics, ", "))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	fmt.Fprintf(&b, "Source: %s\n", item.SourceName)
	if item.Author != nil && *item.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", *item.Author)
	}
	if body := item.Body(); body != "" {
		fmt.Fprintf(&b, "\n%s\n", body)
	}

	return b.String()
}
