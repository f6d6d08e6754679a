package sqlchain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/aanchal1903/BusinessOps-Chatbot/prompts"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
)

// DefaultTopK caps the rows a generated query asks for.
const DefaultTopK = 25

// GenerateInput is the input of Generator.Generate.
type GenerateInput struct {
	Question string
	// AllowList restricts the schema shown to the model.
	AllowList []string
	// SchemaInfo is the rendered schema. It is described from AllowList when
	// empty.
	SchemaInfo string
	// History is the formatted conversation context.
	History string
	// TopK overrides the generator's row limit when positive.
	TopK int
}

// Generator turns a question into a single SQL statement.
type Generator struct {
	llm    llm.LLM
	schema *sqldb.SchemaInspector
	prompt prompts.BasePromptTemplate
	topK   int
	logger *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorPrompt overrides the text-to-SQL prompt. It must accept
// {top_k}, {table_info}, {history} and {input}.
func WithGeneratorPrompt(prompt prompts.BasePromptTemplate) GeneratorOption {
	return func(g *Generator) {
		g.prompt = prompt
	}
}

// WithTopK sets the default row limit.
func WithTopK(k int) GeneratorOption {
	return func(g *Generator) {
		if k > 0 {
			g.topK = k
		}
	}
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a Generator that writes SQL for dialect.
func NewGenerator(llmInstance llm.LLM, schema *sqldb.SchemaInspector, dialect sqldb.Dialect, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:    llmInstance,
		schema: schema,
		prompt: prompts.TextToSQLPrompt(string(dialect)),
		topK:   DefaultTopK,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders the prompt, calls the model and extracts the statement.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (string, error) {
	schemaInfo := in.SchemaInfo
	if schemaInfo == "" {
		var err error
		schemaInfo, err = g.schema.Describe(ctx, in.AllowList)
		if err != nil {
			g.logger.Error("Schema introspection failed", "error", err)
			return "", fmt.Errorf("failed to describe schema: %w", sqldb.NewQueryExecutionError("", err))
		}
	}

	topK := g.topK
	if in.TopK > 0 {
		topK = in.TopK
	}
	history := in.History
	if history == "" {
		history = memory.NoHistory
	}

	raw, err := g.llm.Complete(ctx, g.prompt.Format(map[string]string{
		"top_k":      strconv.Itoa(topK),
		"table_info": schemaInfo,
		"history":    history,
		"input":      in.Question,
	}))
	if err != nil {
		return "", err
	}

	query, err := ExtractSQL(raw)
	if err != nil {
		g.logger.Warn("SQL extraction failed", "raw", raw)
		return "", err
	}
	g.logger.Debug("SQL generated", "query", query)
	return query, nil
}
