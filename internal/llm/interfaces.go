package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// All enrichment prompts use single-string completion style (not chat).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
// Returns a float32 slice, which the vector indexes store as float32.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// TemperatureGenerator is an optional capability a TextGenerator may offer:
// a completion call with an explicit sampling temperature. The MAKER
// reliability layer uses it to fan out N independent calls against the same
// prompt; callers that only have a plain TextGenerator fall back to Complete.
type TemperatureGenerator interface {
	CompleteWithTemperature(ctx context.Context, prompt string, temperature float64) (string, error)
}
