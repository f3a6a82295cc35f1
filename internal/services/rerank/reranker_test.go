package rerank

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/models"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func shortlist(n int) []models.Item {
	items := make([]models.Item, n)
	for i := range items {
		score := float64(100 - i)
		items[i] = models.Item{
			ID:             fmt.Sprintf("https://example.com/%d", i),
			Title:          fmt.Sprintf("item %d", i),
			SourceName:     "test feed",
			RelevanceScore: &score,
		}
	}
	return items
}

func newTestReranker(completer *fakeCompleter) *Reranker {
	return NewReranker(completer, 1024, arbor.NewLogger())
}

func TestSelectSkipsModelWhenShortlistFits(t *testing.T) {
	completer := &fakeCompleter{}
	r := newTestReranker(completer)

	items := shortlist(3)
	got := r.Select(context.Background(), items, []string{"topic"}, "", 5)

	if completer.calls != 0 {
		t.Errorf("model called %d times for an already-fitting shortlist, want 0", completer.calls)
	}
	if len(got) != 3 {
		t.Errorf("got %d items, want 3 unchanged", len(got))
	}
}

func TestSelectHonorsModelDecisions(t *testing.T) {
	completer := &fakeCompleter{response: `[
		{"index": 3, "selected": true, "reason": "novel result"},
		{"index": 0, "selected": false, "reason": "duplicate coverage"},
		{"index": 1, "selected": true, "reason": "strong source"}
	]`}
	r := newTestReranker(completer)

	got := r.Select(context.Background(), shortlist(6), []string{"topic"}, "", 2)

	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].Title != "item 3" || got[1].Title != "item 1" {
		t.Errorf("selected [%q, %q], want selections in response order", got[0].Title, got[1].Title)
	}
	if got[0].SelectionRationale == nil || *got[0].SelectionRationale != "novel result" {
		t.Errorf("first selection missing rationale")
	}
}

func TestSelectFillsShortfallFromRanking(t *testing.T) {
	// Model selects only one item; the other two slots fill from the top of
	// the embedding ranking.
	completer := &fakeCompleter{response: `[{"index": 4, "selected": true, "reason": "pick"}]`}
	r := newTestReranker(completer)

	got := r.Select(context.Background(), shortlist(6), []string{"topic"}, "", 3)

	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
	if got[0].Title != "item 4" {
		t.Errorf("first = %q, want model's pick", got[0].Title)
	}
	if got[1].Title != "item 0" || got[2].Title != "item 1" {
		t.Errorf("fill = [%q, %q], want top of embedding ranking", got[1].Title, got[2].Title)
	}
}

func TestSelectFallsBackOnGarbageResponse(t *testing.T) {
	for _, response := range []string{
		"I cannot help with that.",
		`{"index": 0, "selected": true}`,
		`[{"index": "zero", "selected": true}]`,
		"",
	} {
		completer := &fakeCompleter{response: response}
		r := newTestReranker(completer)

		got := r.Select(context.Background(), shortlist(5), []string{"topic"}, "", 2)

		if len(got) != 2 {
			t.Fatalf("response %q: got %d items, want 2", response, len(got))
		}
		if got[0].Title != "item 0" || got[1].Title != "item 1" {
			t.Errorf("response %q: fallback order [%q, %q], want embedding ranking", response, got[0].Title, got[1].Title)
		}
	}
}

func TestSelectParsesArrayWrappedInProse(t *testing.T) {
	completer := &fakeCompleter{response: `Here are my selections:
[{"index": 2, "selected": true, "reason": "best fit"}, {"index": 0, "selected": true, "reason": "second"}]
Let me know if you need anything else.`}
	r := newTestReranker(completer)

	got := r.Select(context.Background(), shortlist(5), []string{"topic"}, "", 2)

	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].Title != "item 2" {
		t.Errorf("first = %q, want %q", got[0].Title, "item 2")
	}
}

func TestSelectIgnoresInvalidAndDuplicateIndices(t *testing.T) {
	completer := &fakeCompleter{response: `[
		{"index": -1, "selected": true, "reason": "bad"},
		{"index": 99, "selected": true, "reason": "bad"},
		{"index": 1, "selected": true, "reason": "good"},
		{"index": 1, "selected": true, "reason": "repeat"}
	]`}
	r := newTestReranker(completer)

	got := r.Select(context.Background(), shortlist(4), []string{"topic"}, "", 2)

	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].Title != "item 1" {
		t.Errorf("first = %q, want the one valid selection", got[0].Title)
	}
	if got[1].Title != "item 0" {
		t.Errorf("second = %q, want fill from ranking", got[1].Title)
	}
}

func TestSelectFallsBackOnModelError(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("api down")}
	r := newTestReranker(completer)

	got := r.Select(context.Background(), shortlist(5), []string{"topic"}, "", 3)

	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
	for i, item := range got {
		want := fmt.Sprintf("item %d", i)
		if item.Title != want {
			t.Errorf("position %d = %q, want %q", i, item.Title, want)
		}
	}
}

func TestSelectPromptIncludesGuidanceAndExcerpt(t *testing.T) {
	body := strings.Repeat("x", 600)
	items := shortlist(5)
	items[0].BodyText = &body

	completer := &fakeCompleter{response: "[]"}
	r := newTestReranker(completer)
	r.Select(context.Background(), items, []string{"databases"}, "prefer primary sources", 2)

	if !strings.Contains(completer.prompt, "prefer primary sources") {
		t.Error("prompt missing guidance text")
	}
	if !strings.Contains(completer.prompt, "databases") {
		t.Error("prompt missing topics")
	}
	if strings.Contains(completer.prompt, body) {
		t.Error("prompt contains full body, want truncated excerpt")
	}
	if !strings.Contains(completer.prompt, strings.Repeat("x", 500)+"...") {
		t.Error("prompt missing truncated excerpt")
	}
}

func TestParseDecisions(t *testing.T) {
	decisions, err := parseDecisions(`[{"index": 0, "selected": true, "reason": "r"}]`)
	if err != nil {
		t.Fatalf("parseDecisions failed: %v", err)
	}
	if len(decisions) != 1 || decisions[0].Index != 0 || !decisions[0].Selected {
		t.Errorf("decisions = %+v, want one selected index 0", decisions)
	}

	if _, err := parseDecisions("no brackets here"); err == nil {
		t.Error("expected error for response without array")
	}
	if _, err := parseDecisions("]["); err == nil {
		t.Error("expected error for reversed brackets")
	}
}
