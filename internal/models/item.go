package models

import "time"

// Item is a unit of content moving through the curation pipeline.
//
// ID is derived from the item's source URL and is the sole identity key for
// dedup and the posted-item ledger: two items with equal ID are the same item
// regardless of other field differences. Optional fields are explicit
// pointers rather than ad-hoc missing keys; they stay nil until the owning
// stage sets them (RelevanceScore by curation, Summary by enrichment,
// SelectionRationale by rerank) and are never re-derived within a run.
type Item struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	SourceName         string     `json:"source_name"`
	Author             *string    `json:"author,omitempty"`
	BodyText           *string    `json:"body_text,omitempty"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	RelevanceScore     *float64   `json:"relevance_score,omitempty"`
	Summary            *string    `json:"summary,omitempty"`
	SelectionRationale *string    `json:"selection_rationale,omitempty"`
}

// Body returns the item's body text, or "" when absent.
func (i *Item) Body() string {
	if i.BodyText == nil {
		return ""
	}
	return *i.BodyText
}

// Score returns the relevance score, or 0 when the item has not been scored.
func (i *Item) Score() float64 {
	if i.RelevanceScore == nil {
		return 0
	}
	return *i.RelevanceScore
}
