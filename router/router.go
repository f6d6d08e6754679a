// Package router decides which pipeline answers a question: the structured
// text-to-SQL chain or the unstructured candidate matcher.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/prompts"
)

// Decision is the pipeline a question is routed to.
type Decision string

const (
	Structured   Decision = "structured"
	Unstructured Decision = "unstructured"
)

// DefaultDecision is used when the classifier output names neither pipeline.
const DefaultDecision = Structured

// labelRegex matches the first classification keyword as a whole word,
// optionally suffixed with _QUERY.
var labelRegex = regexp.MustCompile(`\b(UN)?STRUCTURED(?:_QUERY)?\b`)

// ParseDecision decodes raw classifier output. ok is false when no keyword was
// found, in which case the returned decision is DefaultDecision. When both
// keywords appear the first one wins.
func ParseDecision(raw string) (decision Decision, ok bool) {
	m := labelRegex.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(raw)))
	switch {
	case m == nil:
		return DefaultDecision, false
	case m[1] != "":
		return Unstructured, true
	default:
		return Structured, true
	}
}

// QueryRouter classifies questions with one model call. It keeps no state
// between calls and never retries; retries belong to the model client.
type QueryRouter struct {
	llm    llm.LLM
	prompt prompts.BasePromptTemplate
	logger *slog.Logger
}

// QueryRouterOption configures a QueryRouter.
type QueryRouterOption func(*QueryRouter)

// WithPrompt overrides the classification prompt. It must accept {query}.
func WithPrompt(prompt prompts.BasePromptTemplate) QueryRouterOption {
	return func(r *QueryRouter) {
		r.prompt = prompt
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) QueryRouterOption {
	return func(r *QueryRouter) {
		r.logger = logger
	}
}

// NewQueryRouter creates a new QueryRouter.
func NewQueryRouter(llmInstance llm.LLM, opts ...QueryRouterOption) *QueryRouter {
	r := &QueryRouter{
		llm:    llmInstance,
		prompt: prompts.DefaultQueryRouterPrompt,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RouteQuery classifies question. Model failures are returned as is; an
// unrecognised answer is logged and routed to DefaultDecision.
func (r *QueryRouter) RouteQuery(ctx context.Context, question string) (Decision, error) {
	raw, err := r.llm.Complete(ctx, r.prompt.Format(map[string]string{"query": question}))
	if err != nil {
		return "", fmt.Errorf("query classification failed: %w", err)
	}

	decision, ok := ParseDecision(raw)
	if !ok {
		r.logger.Warn("Ambiguous classification, using default route",
			"raw", truncate(raw, 80),
			"decision", decision)
	}
	r.logger.Info("Query routed", "decision", decision)
	return decision, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
