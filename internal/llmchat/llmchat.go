// Package llmchat defines the single external LLM capability the core
// depends on: the ai workflow node and the Intent Classifier's optional
// refinement path. Grounded on the teacher's internal/interfaces.LLMProvider,
// narrowed to the one call both callers actually need.
package llmchat

import "context"

// Message is one turn of a chat-style conversation.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Provider is implemented by whatever concrete SDK client the caller
// wires in (OpenAI, Anthropic, a local model gateway, ...). Neither the
// Workflow Engine nor the Intent Classifier import a provider directly;
// they hold a Provider that may be nil: the engine then fails ai nodes
// with workflow.ErrLLMUnavail and the classifier skips refinement.
type Provider interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// ProviderFunc adapts a plain function to Provider, mirroring the
// skill/agent function-adapter pattern used elsewhere in the teacher's
// codebase for small single-method interfaces.
type ProviderFunc func(ctx context.Context, systemPrompt string, messages []Message) (string, error)

func (f ProviderFunc) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	return f(ctx, systemPrompt, messages)
}
