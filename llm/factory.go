package llm

import (
	"fmt"
	"log/slog"
)

// NewFromConfig builds the provider client described by cfg and wraps it in a
// RetryingLLM carrying the configured timeout and retry budget.
func NewFromConfig(cfg ModelConfig, logger *slog.Logger, observer CallObserver) (*RetryingLLM, error) {
	opts := []OpenAIOption{WithTemperature(cfg.Temperature), WithMaxTokens(cfg.MaxTokens)}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.APIKey != "" {
		opts = append(opts, WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}

	var base LLM
	switch cfg.Provider {
	case ProviderOpenAI:
		base = NewOpenAILLM(opts...)
	case ProviderGroq, "":
		base = NewGroqLLM(opts...)
	case ProviderGemini:
		base = NewGeminiLLM(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	retryOpts := []RetryOption{WithMaxRetries(cfg.MaxRetries), WithObserver(observer)}
	if cfg.Timeout > 0 {
		retryOpts = append(retryOpts, WithTimeout(cfg.Timeout))
	}
	if logger != nil {
		retryOpts = append(retryOpts, WithRetryLogger(logger))
	}
	return NewRetryingLLM(base, retryOpts...), nil
}
