package llm

import "context"

// LLM is the interface for interacting with Large Language Models.
// Every model call in the system (classification, SQL generation, answer
// synthesis, candidate recommendation) goes through it.
type LLM interface {
	// Complete generates a completion for a given prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// Chat generates a response for a list of chat messages.
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
	// Stream generates a streaming completion for a given prompt.
	Stream(ctx context.Context, prompt string) (<-chan string, error)
}

// LLMWithMetadata extends LLM with the name of the backing model.
type LLMWithMetadata interface {
	LLM
	// Metadata returns information about the model.
	Metadata() LLMMetadata
}

// CallObserver receives the outcome of every model call made through a
// RetryingLLM. metrics.Metrics satisfies it.
type CallObserver interface {
	ObserveLLMCall(model, outcome string)
}
