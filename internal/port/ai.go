package port

import "context"

// AIProvider abstracts the AI/LLM backend for embeddings and text generation.
// Implementations can target Ollama, Gemini, or any compatible API.
type AIProvider interface {
	// ModelName returns the identifier of the generation model being used.
	ModelName() string

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Generate sends a complete prompt and returns the raw model response.
	// Transport and API failures are reported as ErrModel.
	Generate(ctx context.Context, prompt string) (string, error)
}
