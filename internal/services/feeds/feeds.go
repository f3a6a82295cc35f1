// Package feeds ingests RSS/Atom sources and normalizes their entries into
// pipeline items.
package feeds

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/models"
)

// LoadList reads a newline-delimited list file. Blank lines and lines
// starting with '#' are skipped; surrounding whitespace is trimmed. Used for
// both the feed URL list and the topic list.
func LoadList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list file %s: %w", path, err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list file %s: %w", path, err)
	}

	return entries, nil
}

// Fetcher pulls feeds and converts entries to items.
type Fetcher struct {
	parser *gofeed.Parser
	logger arbor.ILogger
}

// NewFetcher creates a feed fetcher.
func NewFetcher(logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// FetchAll retrieves every feed concurrently and returns the combined items
// in feed-list order. A feed that fails to fetch or parse is logged and
// skipped; one dead feed never blocks the rest.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []models.Item {
	results := make([][]models.Item, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			items, err := f.fetch(ctx, url)
			if err != nil {
				f.logger.Warn().Err(err).Str("feed", url).Msg("Skipping feed")
				return
			}
			results[i] = items
		}(i, url)
	}
	wg.Wait()

	var all []models.Item
	for _, items := range results {
		all = append(all, items...)
	}

	f.logger.Info().
		Int("feeds", len(urls)).
		Int("items", len(all)).
		Msg("Feed fetch complete")

	return all
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]models.Item, error) {
	feed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	items := make([]models.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, convertEntry(feed, entry))
	}
	return items, nil
}

// convertEntry maps a feed entry to an item. The entry link doubles as the
// item identity, which is what the posted-item ledger keys on.
func convertEntry(feed *gofeed.Feed, entry *gofeed.Item) models.Item {
	item := models.Item{
		ID:         entry.Link,
		Title:      strings.TrimSpace(entry.Title),
		SourceName: feed.Title,
	}

	if entry.Author != nil && entry.Author.Name != "" {
		author := entry.Author.Name
		item.Author = &author
	}

	body := strings.TrimSpace(entry.Content)
	if body == "" {
		body = strings.TrimSpace(entry.Description)
	}
	if body != "" {
		item.BodyText = &body
	}

	if entry.PublishedParsed != nil {
		published := *entry.PublishedParsed
		item.PublishedAt = &published
	} else if entry.UpdatedParsed != nil {
		updated := *entry.UpdatedParsed
		item.PublishedAt = &updated
	}

	return item
}

// Deduplicate drops items whose ID was already seen, keeping the first
// occurrence. Items without an ID are kept as-is; identity is undefined for
// them so no collapsing is possible.
func Deduplicate(items []models.Item) []models.Item {
	seen := make(map[string]bool, len(items))
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		if item.ID != "" {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
		}
		out = append(out, item)
	}
	return out
}

// FilterRecent keeps items published within the timeframe ending at now.
// Items with no parseable publication date are dropped: an undated entry
// cannot be proven fresh.
func FilterRecent(items []models.Item, timeframe time.Duration, now time.Time) []models.Item {
	cutoff := now.Add(-timeframe)
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		if item.PublishedAt == nil {
			continue
		}
		if item.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, item)
	}
	return out
}
