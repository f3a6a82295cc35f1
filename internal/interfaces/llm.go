package interfaces

import "context"

// EmbeddingProvider generates dense vectors for text. Errors are treated as
// transient and retryable by convention; callers wrap calls in a retry
// policy.
type EmbeddingProvider interface {
	// Embed generates a fixed-dimensionality embedding vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the embedding model identifier used to partition
	// cache keys.
	ModelName() string
}

// Completer generates text from a single prompt. Used for summaries, rerank
// decisions and the digest.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}
