package llm

import (
	"context"
	"strings"
	"sync"
)

// MockLLM is a mock implementation of the LLM interface.
// It returns Responses in order, then Response for every later call, and
// records each prompt it was given.
type MockLLM struct {
	// Response is the text response to return once Responses is drained.
	Response string
	// Responses are returned one per call before falling back to Response.
	Responses []string
	// Err is the error to return (if any).
	Err error
	// Errs are returned one per call before falling back to Err.
	Errs []error

	mu      sync.Mutex
	prompts []string
}

// NewMockLLM creates a new MockLLM with a simple response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: response}
}

// NewScriptedMockLLM returns responses in order.
func NewScriptedMockLLM(responses ...string) *MockLLM {
	return &MockLLM{Responses: responses}
}

// NewMockLLMWithError creates a new MockLLM that returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Err: err}
}

func (m *MockLLM) next(prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)

	var err error
	if len(m.Errs) > 0 {
		err, m.Errs = m.Errs[0], m.Errs[1:]
	} else {
		err = m.Err
	}
	if err != nil {
		return "", err
	}

	if len(m.Responses) > 0 {
		var resp string
		resp, m.Responses = m.Responses[0], m.Responses[1:]
		return resp, nil
	}
	return m.Response, nil
}

func (m *MockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return m.next(prompt)
}

// Chat records the message contents joined by blank lines as the prompt.
func (m *MockLLM) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	parts := make([]string, len(messages))
	for i, msg := range messages {
		parts[i] = msg.Content
	}
	return m.next(strings.Join(parts, "\n\n"))
}

func (m *MockLLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	resp, err := m.next(prompt)
	ch := make(chan string, 1)
	if err != nil {
		close(ch)
		return ch, err
	}
	ch <- resp
	close(ch)
	return ch, nil
}

// Prompts returns every prompt received so far.
func (m *MockLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns the number of calls received so far.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Metadata returns the mock model metadata.
func (m *MockLLM) Metadata() LLMMetadata {
	return LLMMetadata{ModelName: "mock-model", Provider: ProviderMock}
}

var _ LLMWithMetadata = (*MockLLM)(nil)
