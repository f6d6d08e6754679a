package sqlchain

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/aanchal1903/BusinessOps-Chatbot/prompts"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
)

// DefaultLanguage is the answer language when none is requested.
const DefaultLanguage = "ENGLISH"

// SynthesisInput is the input of Synthesizer.Synthesize.
type SynthesisInput struct {
	Question string
	SQLQuery string
	// Result is the serialized execution result or sqldb.NoDataSentinel.
	Result   string
	History  string
	Language string
}

// Synthesizer narrates an execution result as the final answer.
type Synthesizer struct {
	llm    llm.LLM
	prompt prompts.BasePromptTemplate
	logger *slog.Logger
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithSynthesisPrompt overrides the answer prompt. It must accept {language},
// {history}, {question}, {sql_query} and {sql_result}.
func WithSynthesisPrompt(prompt prompts.BasePromptTemplate) SynthesizerOption {
	return func(s *Synthesizer) {
		s.prompt = prompt
	}
}

// WithSynthesizerLogger sets the logger.
func WithSynthesizerLogger(logger *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer creates a new Synthesizer.
func NewSynthesizer(llmInstance llm.LLM, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		llm:    llmInstance,
		prompt: prompts.DefaultSQLAnswerPrompt,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize generates the answer text.
func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	result := in.Result
	if strings.TrimSpace(result) == "" {
		result = sqldb.NoDataSentinel
	}
	history := in.History
	if history == "" {
		history = memory.NoHistory
	}
	language := in.Language
	if language == "" {
		language = DefaultLanguage
	}

	answer, err := s.llm.Chat(ctx, s.prompt.FormatMessages(map[string]string{
		"language":   language,
		"history":    history,
		"question":   in.Question,
		"sql_query":  in.SQLQuery,
		"sql_result": result,
	}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}
