package prompts

import (
	"regexp"
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
)

// templateVarRegex matches {variable} placeholders in templates.
var templateVarRegex = regexp.MustCompile(`\{(\w+)\}`)

// GetTemplateVars extracts variable names from a template string.
func GetTemplateVars(template string) []string {
	matches := templateVarRegex.FindAllStringSubmatch(template, -1)
	vars := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, match := range matches {
		if len(match) > 1 && !seen[match[1]] {
			vars = append(vars, match[1])
			seen[match[1]] = true
		}
	}
	return vars
}

// FormatString substitutes {variable} placeholders in a single pass.
// Placeholders without a value are left as they are, and substituted values
// are never expanded again, so a question containing "{input}" stays literal.
func FormatString(template string, vars map[string]string) string {
	return templateVarRegex.ReplaceAllStringFunc(template, func(placeholder string) string {
		if value, ok := vars[placeholder[1:len(placeholder)-1]]; ok {
			return value
		}
		return placeholder
	})
}

// BasePromptTemplate is the interface for all prompt templates.
type BasePromptTemplate interface {
	// Format formats the prompt into a string.
	Format(vars map[string]string) string
	// FormatMessages formats the prompt into chat messages.
	FormatMessages(vars map[string]string) []llm.ChatMessage
	// GetTemplateVars returns the variable names still to be filled.
	GetTemplateVars() []string
	// PartialFormat creates a new template with some variables pre-filled.
	PartialFormat(vars map[string]string) BasePromptTemplate
	// GetPromptType returns the prompt type.
	GetPromptType() PromptType
}

func mergeVars(partial, vars map[string]string) map[string]string {
	all := make(map[string]string, len(partial)+len(vars))
	for k, v := range partial {
		all[k] = v
	}
	for k, v := range vars {
		all[k] = v
	}
	return all
}

// templateVars is the variable bookkeeping shared by both template kinds.
type templateVars struct {
	names   []string
	kind    PromptType
	partial map[string]string
}

func newTemplateVars(names []string, kind PromptType) templateVars {
	return templateVars{names: names, kind: kind, partial: map[string]string{}}
}

// GetTemplateVars returns the variable names not yet pre-filled.
func (tv templateVars) GetTemplateVars() []string {
	out := make([]string, 0, len(tv.names))
	for _, name := range tv.names {
		if _, ok := tv.partial[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// GetPromptType returns the prompt type.
func (tv templateVars) GetPromptType() PromptType {
	return tv.kind
}

// PartialVars returns the pre-filled variables.
func (tv templateVars) PartialVars() map[string]string {
	return tv.partial
}

func (tv templateVars) with(vars map[string]string) templateVars {
	return templateVars{names: tv.names, kind: tv.kind, partial: mergeVars(tv.partial, vars)}
}

// PromptTemplate renders one text prompt.
type PromptTemplate struct {
	templateVars
	Template string
}

// NewPromptTemplate creates a PromptTemplate.
func NewPromptTemplate(template string, promptType PromptType) *PromptTemplate {
	return &PromptTemplate{
		templateVars: newTemplateVars(GetTemplateVars(template), promptType),
		Template:     template,
	}
}

// Format renders the prompt. vars override pre-filled values.
func (pt *PromptTemplate) Format(vars map[string]string) string {
	return FormatString(pt.Template, mergeVars(pt.partial, vars))
}

// FormatMessages renders the prompt as a single user message.
func (pt *PromptTemplate) FormatMessages(vars map[string]string) []llm.ChatMessage {
	return []llm.ChatMessage{llm.NewUserMessage(pt.Format(vars))}
}

// PartialFormat returns a copy with vars pre-filled.
func (pt *PromptTemplate) PartialFormat(vars map[string]string) BasePromptTemplate {
	return &PromptTemplate{templateVars: pt.with(vars), Template: pt.Template}
}

// ChatPromptTemplate renders a system/user message sequence.
type ChatPromptTemplate struct {
	templateVars
	Messages []llm.ChatMessage
}

// NewChatPromptTemplate creates a ChatPromptTemplate. Variables are collected
// across all messages in order of first use.
func NewChatPromptTemplate(messages []llm.ChatMessage, promptType PromptType) *ChatPromptTemplate {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	return &ChatPromptTemplate{
		templateVars: newTemplateVars(GetTemplateVars(b.String()), promptType),
		Messages:     messages,
	}
}

// Format renders every message as "role: content", separated by blank lines.
func (cpt *ChatPromptTemplate) Format(vars map[string]string) string {
	messages := cpt.FormatMessages(vars)
	parts := make([]string, len(messages))
	for i, msg := range messages {
		parts[i] = string(msg.Role) + ": " + msg.Content
	}
	return strings.Join(parts, "\n\n")
}

// FormatMessages renders each message, keeping its role.
func (cpt *ChatPromptTemplate) FormatMessages(vars map[string]string) []llm.ChatMessage {
	all := mergeVars(cpt.partial, vars)
	out := make([]llm.ChatMessage, len(cpt.Messages))
	for i, msg := range cpt.Messages {
		out[i] = llm.NewChatMessage(msg.Role, FormatString(msg.Content, all))
	}
	return out
}

// PartialFormat returns a copy with vars pre-filled.
func (cpt *ChatPromptTemplate) PartialFormat(vars map[string]string) BasePromptTemplate {
	return &ChatPromptTemplate{templateVars: cpt.with(vars), Messages: cpt.Messages}
}

var (
	_ BasePromptTemplate = (*PromptTemplate)(nil)
	_ BasePromptTemplate = (*ChatPromptTemplate)(nil)
)
