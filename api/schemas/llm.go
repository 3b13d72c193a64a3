// api/schemas/llm.go
package schemas

import "context"

// GenerationOptions tunes a single provider call.
type GenerationOptions struct {
	Temperature     float32
	MaxOutputTokens int
	StopSequences   []string
}

// GenerationRequest is the provider-agnostic call contract for text
// generation. The system prompt and user prompt are kept separate because
// most providers treat them differently.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// LLMClient is implemented by model providers. Calls are synchronous and may
// fault transiently; implementations retry transient faults internally.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
