package llm

import (
	"errors"
	"time"
)

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	// MessageRoleSystem is for system instructions.
	MessageRoleSystem MessageRole = "system"
	// MessageRoleUser is for user messages.
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant is for assistant responses.
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatMessage represents a message in a chat conversation.
type ChatMessage struct {
	// Role is the role of the message sender.
	Role MessageRole `json:"role"`
	// Content is the text content.
	Content string `json:"content"`
}

// NewChatMessage creates a new chat message with simple text content.
func NewChatMessage(role MessageRole, content string) ChatMessage {
	return ChatMessage{
		Role:    role,
		Content: content,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return NewChatMessage(MessageRoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return NewChatMessage(MessageRoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return NewChatMessage(MessageRoleAssistant, content)
}

// LLMMetadata contains information about an LLM's configuration.
type LLMMetadata struct {
	// ModelName is the name of the model.
	ModelName string `json:"model_name"`
	// Provider is the provider the model is served by.
	Provider Provider `json:"provider"`
}

// Provider names an OpenAI-compatible model endpoint.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
	ProviderGemini Provider = "gemini"
	ProviderMock   Provider = "mock"
)

// ModelConfig describes one model client: where it lives and how each call is
// bounded. It is built once at process start and passed to NewFromConfig.
type ModelConfig struct {
	Provider    Provider      `json:"provider" yaml:"provider"`
	Model       string        `json:"model" yaml:"model"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	APIKey      string        `json:"-" yaml:"-"`
	Temperature float32       `json:"temperature" yaml:"temperature"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
}

var (
	// ErrModelUnavailable is returned when a model call keeps failing after
	// the client's bounded retries.
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrModelTimeout is returned when the final attempt ran out of time.
	ErrModelTimeout = errors.New("language model timed out")
	// ErrEmptyResponse is returned when the provider answered with no choices.
	ErrEmptyResponse = errors.New("language model returned no choices")
)
