package prompts

import (
	"testing"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/stretchr/testify/assert"
)

func TestGetTemplateVars(t *testing.T) {
	tests := []struct {
		template string
		expected []string
	}{
		{"Hello {name}!", []string{"name"}},
		{"Hello {name}, you are {age} years old.", []string{"name", "age"}},
		{"{a} {b} {a}", []string{"a", "b"}},
		{"No variables here", []string{}},
		{"{input}\n{table_info}", []string{"input", "table_info"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetTemplateVars(tt.template))
	}
}

func TestFormatString(t *testing.T) {
	t.Run("substitutes known vars", func(t *testing.T) {
		result := FormatString("Hello {name}, you are {age} years old.", map[string]string{
			"name": "Alice",
			"age":  "30",
		})
		assert.Equal(t, "Hello Alice, you are 30 years old.", result)
	})

	t.Run("leaves unknown placeholders", func(t *testing.T) {
		assert.Equal(t, "{missing} x", FormatString("{missing} {v}", map[string]string{"v": "x"}))
	})

	t.Run("does not expand substituted values", func(t *testing.T) {
		result := FormatString("Q: {input} T: {table_info}", map[string]string{
			"input":      "what is {table_info}?",
			"table_info": "company",
		})
		assert.Equal(t, "Q: what is {table_info}? T: company", result)
	})
}

func TestPromptTemplatePartialFormat(t *testing.T) {
	pt := NewPromptTemplate("Query: {query}\nContext: {context}", PromptTypeCustom)

	partial := pt.PartialFormat(map[string]string{"context": "ctx"})
	assert.Equal(t, []string{"query"}, partial.GetTemplateVars())
	assert.Equal(t, "Query: q\nContext: ctx", partial.Format(map[string]string{"query": "q"}))

	messages := partial.FormatMessages(map[string]string{"query": "q"})
	assert.Len(t, messages, 1)
	assert.Equal(t, llm.MessageRoleUser, messages[0].Role)

	// original is untouched
	assert.Empty(t, pt.PartialVars())
}

func TestChatPromptTemplate(t *testing.T) {
	cpt := NewChatPromptTemplate([]llm.ChatMessage{
		llm.NewSystemMessage("You are a {role}."),
		llm.NewUserMessage("Query: {query}"),
	}, PromptTypeCustom)

	assert.ElementsMatch(t, []string{"role", "query"}, cpt.GetTemplateVars())

	formatted := cpt.PartialFormat(map[string]string{"role": "helpful assistant"}).
		FormatMessages(map[string]string{"query": "What is AI?"})
	assert.Len(t, formatted, 2)
	assert.Equal(t, llm.MessageRoleSystem, formatted[0].Role)
	assert.Equal(t, "You are a helpful assistant.", formatted[0].Content)
	assert.Equal(t, "Query: What is AI?", formatted[1].Content)

	assert.Equal(t, "system: You are a x.\n\nuser: Query: y", cpt.Format(map[string]string{"role": "x", "query": "y"}))
}

func TestTextToSQLPrompt(t *testing.T) {
	vars := map[string]string{
		"top_k":      "25",
		"table_info": "CREATE TABLE \"company\" (...)",
		"history":    "No previous conversation chat history",
		"input":      "How many companies are active?",
	}

	t.Run("sqlite", func(t *testing.T) {
		p := TextToSQLPrompt("sqlite")
		assert.ElementsMatch(t, []string{"top_k", "table_info", "history", "input"}, p.GetTemplateVars())

		out := p.Format(vars)
		assert.Contains(t, out, "You are a SQLite expert")
		assert.Contains(t, out, "at most 25 results")
		assert.Contains(t, out, "date('now')")
		assert.Contains(t, out, `"is_active" = 1`)
		assert.Contains(t, out, "Question: How many companies are active?\nSQLQuery:")
		assert.NotContains(t, out, "{")
	})

	t.Run("postgres", func(t *testing.T) {
		out := TextToSQLPrompt("postgres").Format(vars)
		assert.Contains(t, out, "PostgreSQL")
		assert.Contains(t, out, "CURRENT_DATE")
	})

	t.Run("mysql uses backticks", func(t *testing.T) {
		out := TextToSQLPrompt("mysql").Format(vars)
		assert.Contains(t, out, "CURDATE()")
		assert.Contains(t, out, "`is_active` = 1")
	})

	t.Run("unknown dialect falls back to sqlite", func(t *testing.T) {
		assert.Contains(t, TextToSQLPrompt("oracle").Format(vars), "SQLite")
	})
}

func TestDefaultPrompts(t *testing.T) {
	assert.Equal(t, []string{"query"}, DefaultQueryRouterPrompt.GetTemplateVars())
	assert.ElementsMatch(t, []string{"language", "history", "question", "sql_query", "sql_result"}, DefaultSQLAnswerPrompt.GetTemplateVars())
	assert.ElementsMatch(t, []string{"requirement", "candidates"}, DefaultCandidateMatchPrompt.GetTemplateVars())
	assert.Equal(t, "sql_response_synthesis", DefaultSQLAnswerPrompt.GetPromptType().String())
}
