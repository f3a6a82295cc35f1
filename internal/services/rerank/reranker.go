// Package rerank delegates final shortlist selection to a generative model,
// falling back to the embedding ranking when the delegate misbehaves.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/interfaces"
	"github.com/ternarybob/gleaner/internal/models"
)

// bodyExcerptLimit bounds the per-candidate excerpt so prompt size stays
// proportional to the shortlist length.
const bodyExcerptLimit = 500

// decision is the structured verdict requested for every candidate, not just
// accepted ones, so rejection reasons stay auditable.
type decision struct {
	Index    int    `json:"index"`
	Selected bool   `json:"selected"`
	Reason   string `json:"reason"`
}

// Reranker asks the completion model to pick maxItems from a shortlist.
type Reranker struct {
	completer interfaces.Completer
	maxTokens int
	logger    arbor.ILogger
}

// NewReranker creates a reranker over the completer.
func NewReranker(completer interfaces.Completer, maxTokens int, logger arbor.ILogger) *Reranker {
	return &Reranker{
		completer: completer,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Select returns exactly min(maxItems, len(shortlist)) items. When the
// shortlist already fits, it is returned unchanged with no model call.
// Otherwise the delegate's selected=true decisions are accepted in response
// order up to maxItems, each carrying its rationale; any shortfall (parse
// failure, invalid indices, too few selections) is filled from the shortlist
// in its embedding-ranked order. Delegate failure never fails the pipeline.
func (r *Reranker) Select(ctx context.Context, shortlist []models.Item, topics []string, guidance string, maxItems int) []models.Item {
	if maxItems <= 0 || len(shortlist) <= maxItems {
		return shortlist
	}

	selected := make([]models.Item, 0, maxItems)
	taken := make(map[int]bool, maxItems)

	raw, err := r.completer.Complete(ctx, r.buildPrompt(shortlist, topics, guidance, maxItems), r.maxTokens)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Rerank call failed, falling back to embedding ranking")
	} else {
		decisions, perr := parseDecisions(raw)
		if perr != nil {
			r.logger.Warn().Err(perr).Msg("Rerank response unparseable, falling back to embedding ranking")
		}
		for _, d := range decisions {
			if len(selected) == maxItems {
				break
			}
			if !d.Selected || d.Index < 0 || d.Index >= len(shortlist) || taken[d.Index] {
				continue
			}
			item := shortlist[d.Index]
			reason := d.Reason
			item.SelectionRationale = &reason
			selected = append(selected, item)
			taken[d.Index] = true
		}
	}

	// Fill any remainder in embedding-rank order so the count guarantee
	// holds regardless of what the delegate returned.
	for i := range shortlist {
		if len(selected) == maxItems {
			break
		}
		if taken[i] {
			continue
		}
		selected = append(selected, shortlist[i])
		taken[i] = true
	}

	r.logger.Info().
		Int("shortlist", len(shortlist)).
		Int("selected", len(selected)).
		Msg("Rerank selection complete")

	return selected
}

func (r *Reranker) buildPrompt(shortlist []models.Item, topics []string, guidance string, maxItems int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are selecting the %d most valuable items from a list of %d candidates.\n", maxItems, len(shortlist))
	fmt.Fprintf(&b, "Topics of interest: %s\n", strings.Join(topics, ", "))
	if guidance != "" {
		fmt.Fprintf(&b, "Selection guidance: %s\n", guidance)
	}
	b.WriteString("\nCandidates:\n")

	for i, item := range shortlist {
		fmt.Fprintf(&b, "\n[%d] %s\n", i, item.Title)
		fmt.Fprintf(&b, "Source: %s | Relevance: %.1f\n", item.SourceName, item.Score())
		if body := item.Body(); body != "" {
			if len(body) > bodyExcerptLimit {
				body = body[:bodyExcerptLimit] + "..."
			}
			fmt.Fprintf(&b, "Excerpt: %s\n", body)
		}
	}

	fmt.Fprintf(&b, `
Respond with a JSON array containing one object per candidate, in this form:
[{"index": 0, "selected": true, "reason": "one sentence"}, ...]
Include every candidate with selected true or false and a one-sentence reason.
Select exactly %d items. Respond with the JSON array only.`, maxItems)

	return b.String()
}

// parseDecisions extracts the decision array from a raw model response.
// The contract is deliberate: parsing succeeds only if a well-formed JSON
// array is extractable between the first '[' and the last ']'; any other
// shape is a parse failure that triggers the fallback fill.
func parseDecisions(raw string) ([]decision, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var decisions []decision
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decisions); err != nil {
		return nil, fmt.Errorf("invalid decision array: %w", err)
	}

	return decisions, nil
}
