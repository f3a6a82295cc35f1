package digest

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
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestIntroUsesModelResponse(t *testing.T) {
	completer := &fakeCompleter{response: "  Three stories on consensus protocols today.  "}
	w := NewWriter(completer, 256, arbor.NewLogger())

	intro := w.Intro(context.Background(), []models.Item{{Title: "a", SourceName: "s"}}, []string{"consensus"})
	if intro != "Three stories on consensus protocols today." {
		t.Errorf("intro = %q, want trimmed model response", intro)
	}
}

func TestIntroFallsBackOnError(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("api down")}
	w := NewWriter(completer, 256, arbor.NewLogger())

	intro := w.Intro(context.Background(), []models.Item{{Title: "a", SourceName: "s"}}, nil)
	if intro != fallbackDigest {
		t.Errorf("intro = %q, want fallback", intro)
	}
}

func TestIntroFallsBackOnBlankResponse(t *testing.T) {
	completer := &fakeCompleter{response: "   \n"}
	w := NewWriter(completer, 256, arbor.NewLogger())

	intro := w.Intro(context.Background(), []models.Item{{Title: "a", SourceName: "s"}}, nil)
	if intro != fallbackDigest {
		t.Errorf("intro = %q, want fallback for blank response", intro)
	}
}

func TestIntroSkipsModelForEmptyBatch(t *testing.T) {
	completer := &fakeCompleter{response: "unused"}
	w := NewWriter(completer, 256, arbor.NewLogger())

	intro := w.Intro(context.Background(), nil, nil)
	if intro != fallbackDigest {
		t.Errorf("intro = %q, want fallback", intro)
	}
	if completer.calls != 0 {
		t.Errorf("model called %d times for empty batch, want 0", completer.calls)
	}
}

func TestIntroPromptListsItems(t *testing.T) {
	w := NewWriter(&fakeCompleter{response: "ok"}, 256, arbor.NewLogger())

	prompt := w.buildPrompt([]models.Item{
		{Title: "Raft explained", SourceName: "blog"},
		{Title: "Paxos revisited", SourceName: "paper"},
	}, []string{"consensus"})

	for _, want := range []string{"Raft explained", "Paxos revisited", "consensus"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
