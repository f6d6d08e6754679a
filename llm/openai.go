package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	OpenAI_API_URL_v1 = "https://api.openai.com/v1"
)

// OpenAILLM talks to any OpenAI-compatible chat completion endpoint. The Groq
// and Gemini constructors return it pointed at their base URLs.
type OpenAILLM struct {
	client      *openai.Client
	model       string
	provider    Provider
	apiKey      string
	baseURL     string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// OpenAIOption configures an OpenAILLM.
type OpenAIOption func(*OpenAILLM)

// WithModel sets the model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.model = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.apiKey = apiKey
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.baseURL = baseURL
	}
}

// WithClient sets a custom OpenAI client (for testing).
func WithClient(client *openai.Client) OpenAIOption {
	return func(o *OpenAILLM) {
		o.client = client
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float32) OpenAIOption {
	return func(o *OpenAILLM) {
		o.temperature = temperature
	}
}

// WithMaxTokens caps the completion length. Zero leaves it to the provider.
func WithMaxTokens(maxTokens int) OpenAIOption {
	return func(o *OpenAILLM) {
		o.maxTokens = maxTokens
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(o *OpenAILLM) {
		o.logger = logger
	}
}

func withProvider(p Provider) OpenAIOption {
	return func(o *OpenAILLM) {
		o.provider = p
	}
}

// NewOpenAILLM creates a client for the OpenAI API. The API key defaults to
// OPENAI_API_KEY and the base URL to OPENAI_URL or the public endpoint.
func NewOpenAILLM(opts ...OpenAIOption) *OpenAILLM {
	o := &OpenAILLM{
		model:    openai.GPT4oMini,
		provider: ProviderOpenAI,
		apiKey:   os.Getenv("OPENAI_API_KEY"),
		baseURL:  os.Getenv("OPENAI_URL"),
		logger:   slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	if o.baseURL == "" {
		o.baseURL = OpenAI_API_URL_v1
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		config := openai.DefaultConfig(o.apiKey)
		config.BaseURL = o.baseURL
		o.client = openai.NewClientWithConfig(config)
	}
	return o
}

// Metadata returns information about the model.
func (o *OpenAILLM) Metadata() LLMMetadata {
	return LLMMetadata{ModelName: o.model, Provider: o.provider}
}

func (o *OpenAILLM) request(messages []openai.ChatCompletionMessage, stream bool) openai.ChatCompletionRequest {
	temperature := o.temperature
	if temperature == 0 {
		// go-openai drops a zero temperature through omitempty.
		temperature = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   o.maxTokens,
		Stream:      stream,
	}
}

// Complete generates a completion for a single user prompt.
func (o *OpenAILLM) Complete(ctx context.Context, prompt string) (string, error) {
	o.logger.Info("Complete called", "provider", o.provider, "model", o.model, "prompt_len", len(prompt))

	resp, err := o.client.CreateChatCompletion(ctx, o.request([]openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	}, false))
	if err != nil {
		o.logger.Error("Complete failed", "provider", o.provider, "error", err)
		return "", fmt.Errorf("%s completion failed: %w", o.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", o.provider, ErrEmptyResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

// Chat generates a response for a list of chat messages.
func (o *OpenAILLM) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	o.logger.Info("Chat called", "provider", o.provider, "model", o.model, "message_count", len(messages))

	resp, err := o.client.CreateChatCompletion(ctx, o.request(convertToOpenAIMessages(messages), false))
	if err != nil {
		o.logger.Error("Chat failed", "provider", o.provider, "error", err)
		return "", fmt.Errorf("%s chat failed: %w", o.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", o.provider, ErrEmptyResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream generates a streaming completion. The channel is closed when the
// provider finishes, the stream fails or ctx is done.
func (o *OpenAILLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	o.logger.Info("Stream called", "provider", o.provider, "model", o.model, "prompt_len", len(prompt))

	stream, err := o.client.CreateChatCompletionStream(ctx, o.request([]openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	}, true))
	if err != nil {
		o.logger.Error("Stream failed", "provider", o.provider, "error", err)
		return nil, fmt.Errorf("%s stream failed: %w", o.provider, err)
	}

	tokenChan := make(chan string)

	go func() {
		defer close(tokenChan)
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				o.logger.Error("Stream receive error", "provider", o.provider, "error", err)
				return
			}

			if len(response.Choices) > 0 {
				delta := response.Choices[0].Delta.Content
				if delta != "" {
					select {
					case tokenChan <- delta:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return tokenChan, nil
}

func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case MessageRoleSystem:
			role = openai.ChatMessageRoleSystem
		case MessageRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

var _ LLMWithMetadata = (*OpenAILLM)(nil)
