package ports

import "context"

// LLMClient is an OpenAI-compatible chat completion provider.
// Responses are untrusted free text; callers validate everything they use.
type LLMClient interface {
	ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error)
}
