// Package prompts holds the prompt templates sent to the language models:
// query classification, text-to-SQL, SQL answer synthesis and candidate
// recommendation.
package prompts

// PromptType represents the type/category of a prompt.
type PromptType string

const (
	PromptTypeQueryRouter          PromptType = "query_router"
	PromptTypeTextToSQL            PromptType = "text_to_sql"
	PromptTypeSQLResponseSynthesis PromptType = "sql_response_synthesis"
	PromptTypeCandidateMatch       PromptType = "candidate_match"
	PromptTypeCustom               PromptType = "custom"
)

// String returns the string representation of the prompt type.
func (pt PromptType) String() string {
	return string(pt)
}
