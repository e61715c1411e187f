package llm

import "context"

// Completion is one language model response with its token accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// LanguageModel generates text completions. Implementations must be safe for
// concurrent use; the webhook path and background sentiment scoring share one
// instance.
type LanguageModel interface {
	Complete(ctx context.Context, modelName, system, prompt string) (*Completion, error)
}

// Embedder generates embeddings for vector search queries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
