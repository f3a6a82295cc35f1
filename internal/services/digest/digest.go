// Package digest writes the short introductory paragraph that heads a
// delivered batch.
package digest

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/interfaces"
	"github.com/ternarybob/gleaner/internal/models"
)

// fallbackDigest is used whenever the model cannot produce an intro. A run
// never fails over the digest.
const fallbackDigest = "Here are today's most relevant finds."

// Writer generates the digest intro.
type Writer struct {
	completer interfaces.Completer
	maxTokens int
	logger    arbor.ILogger
}

// NewWriter creates a digest writer over the completer.
func NewWriter(completer interfaces.Completer, maxTokens int, logger arbor.ILogger) *Writer {
	return &Writer{
		completer: completer,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Intro produces a 1-2 sentence overview of the batch. On any model failure
// it returns a static fallback and logs a warning.
func (w *Writer) Intro(ctx context.Context, items []models.Item, topics []string) string {
	if len(items) == 0 {
		return fallbackDigest
	}

	raw, err := w.completer.Complete(ctx, w.buildPrompt(items, topics), w.maxTokens)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Digest generation failed, using fallback")
		return fallbackDigest
	}

	intro := strings.TrimSpace(raw)
	if intro == "" {
		return fallbackDigest
	}
	return intro
}

func (w *Writer) buildPrompt(items []models.Item, topics []string) string {
	var b strings.Builder

	b.WriteString("Write a 1-2 sentence introduction for a digest of the items below. ")
	b.WriteString("Mention the common threads, not individual titles. Plain prose, no greeting.\n")
	if len(topics) > 0 {
		fmt.Fprintf(&b, "Reader interests: %s\n", strings.Join(topics, ", "))
	}
	b.WriteString("\nItems:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s (%s)\n", item.Title, item.SourceName)
	}

	return b.String()
}
