package llm

import "os"

const (
	// GroqAPIURL is the default Groq API endpoint (OpenAI-compatible).
	GroqAPIURL = "https://api.groq.com/openai/v1"
	// GeminiAPIURL is Google's OpenAI-compatible Gemini endpoint.
	GeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// Model names used by the chatbot.
const (
	GroqLlama3_70B   = "llama3-70b-8192"
	GroqMixtral8x7B  = "mixtral-8x7b-32768"
	GeminiFlash      = "gemini-1.5-flash"
	GeminiPro        = "gemini-1.5-pro"
	DefaultGroqModel = GroqLlama3_70B
)

// NewGroqLLM creates a client for Groq's API. The API key defaults to
// GROQ_API_KEY.
func NewGroqLLM(opts ...OpenAIOption) *OpenAILLM {
	base := []OpenAIOption{
		withProvider(ProviderGroq),
		WithModel(DefaultGroqModel),
		WithAPIKey(os.Getenv("GROQ_API_KEY")),
		WithBaseURL(GroqAPIURL),
	}
	return NewOpenAILLM(append(base, opts...)...)
}

// NewGeminiLLM creates a client for Gemini through its OpenAI-compatible
// endpoint. The API key defaults to GEMINI_API_KEY.
func NewGeminiLLM(opts ...OpenAIOption) *OpenAILLM {
	base := []OpenAIOption{
		withProvider(ProviderGemini),
		WithModel(GeminiFlash),
		WithAPIKey(os.Getenv("GEMINI_API_KEY")),
		WithBaseURL(GeminiAPIURL),
	}
	return NewOpenAILLM(append(base, opts...)...)
}
