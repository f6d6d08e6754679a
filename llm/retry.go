package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	outcomeOK          = "ok"
	outcomeTimeout     = "timeout"
	outcomeUnavailable = "unavailable"
)

// RetryingLLM bounds every call of the wrapped LLM with a per-attempt timeout
// and a fixed number of retries. Final failures are reported as
// ErrModelTimeout or ErrModelUnavailable.
type RetryingLLM struct {
	// LLM is the underlying model client.
	LLM LLM
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Timeout bounds a single attempt. Zero means no per-attempt bound.
	Timeout time.Duration
	// RetryDelay is the delay before the first retry. It grows linearly.
	RetryDelay time.Duration

	model    string
	observer CallObserver
	logger   *slog.Logger
}

// RetryOption is a functional option.
type RetryOption func(*RetryingLLM)

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(maxRetries int) RetryOption {
	return func(r *RetryingLLM) {
		r.MaxRetries = maxRetries
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) RetryOption {
	return func(r *RetryingLLM) {
		r.Timeout = timeout
	}
}

// WithRetryDelay sets the delay between retries.
func WithRetryDelay(delay time.Duration) RetryOption {
	return func(r *RetryingLLM) {
		r.RetryDelay = delay
	}
}

// WithObserver reports the outcome of each call.
func WithObserver(observer CallObserver) RetryOption {
	return func(r *RetryingLLM) {
		r.observer = observer
	}
}

// WithRetryLogger sets the logger.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *RetryingLLM) {
		r.logger = logger
	}
}

// NewRetryingLLM wraps llm. Defaults: 2 retries, 60s per attempt, 500ms delay.
func NewRetryingLLM(llm LLM, opts ...RetryOption) *RetryingLLM {
	r := &RetryingLLM{
		LLM:        llm,
		MaxRetries: 2,
		Timeout:    60 * time.Second,
		RetryDelay: 500 * time.Millisecond,
		model:      "unknown",
		logger:     slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	if m, ok := llm.(LLMWithMetadata); ok {
		r.model = m.Metadata().ModelName
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	}

	return r
}

// Metadata returns the wrapped model's metadata when it has any.
func (r *RetryingLLM) Metadata() LLMMetadata {
	if m, ok := r.LLM.(LLMWithMetadata); ok {
		return m.Metadata()
	}
	return LLMMetadata{ModelName: r.model}
}

// Complete generates a completion with retries.
func (r *RetryingLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return do(ctx, r, "complete", func(ctx context.Context) (string, error) {
		return r.LLM.Complete(ctx, prompt)
	})
}

// Chat generates a chat response with retries.
func (r *RetryingLLM) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	return do(ctx, r, "chat", func(ctx context.Context) (string, error) {
		return r.LLM.Chat(ctx, messages)
	})
}

// Stream retries opening the stream only. Once tokens flow the per-attempt
// timeout no longer applies and the caller's ctx governs the stream.
func (r *RetryingLLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	return do(ctx, r, "stream", func(context.Context) (<-chan string, error) {
		return r.LLM.Stream(ctx, prompt)
	})
}

func do[T any](ctx context.Context, r *RetryingLLM, op string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, r.fail(ctx, op, attempt, err)
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		}
		out, err := call(attemptCtx)
		cancel()
		if err == nil {
			r.observe(outcomeOK)
			return out, nil
		}

		lastErr = err
		r.logger.Warn("Model call failed", "model", r.model, "op", op, "attempt", attempt+1, "error", err)

		if attempt < r.MaxRetries {
			select {
			case <-ctx.Done():
				return zero, r.fail(ctx, op, attempt+1, ctx.Err())
			case <-time.After(r.RetryDelay * time.Duration(attempt+1)):
			}
		}
	}

	return zero, r.fail(ctx, op, r.MaxRetries+1, lastErr)
}

func (r *RetryingLLM) fail(ctx context.Context, op string, attempts int, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		r.observe(outcomeTimeout)
		r.logger.Error("Model call timed out", "model", r.model, "op", op, "attempts", attempts)
		return fmt.Errorf("%w after %d attempts: %w", ErrModelTimeout, attempts, err)
	}
	r.observe(outcomeUnavailable)
	r.logger.Error("Model call failed permanently", "model", r.model, "op", op, "attempts", attempts, "error", err)
	return fmt.Errorf("%w after %d attempts: %w", ErrModelUnavailable, attempts, err)
}

func (r *RetryingLLM) observe(outcome string) {
	if r.observer != nil {
		r.observer.ObserveLLMCall(r.model, outcome)
	}
}

var _ LLMWithMetadata = (*RetryingLLM)(nil)
