package prompts

import (
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
)

// Router.

const DefaultQueryRouterTmpl = `You are an expert query classifier for a talent management system.
Classify the user query into exactly one of two categories.

STRUCTURED: the query asks for facts, counts, lists, filters or aggregates that
can be answered from database tables about companies, users and candidate
profiles.
Examples:
- How many companies are active?
- List all users in the Sales department.
- What is the average charge rate of Java developers?
- Which candidates are located in Pune?

UNSTRUCTURED: the query describes a role, a job description or a set of
requirements and asks for the best matching candidate or a recommendation.
Examples:
- Find me the best candidate for a senior React developer role.
- Who would fit a data engineering position with Spark experience?
- Recommend someone for this job description.

Respond with ONLY one word: STRUCTURED or UNSTRUCTURED.

Query: {query}
Classification:`

// DefaultQueryRouterPrompt classifies a question for the router.
var DefaultQueryRouterPrompt = NewPromptTemplate(DefaultQueryRouterTmpl, PromptTypeQueryRouter)

// Text to SQL.

const DefaultTextToSQLTmpl = `You are a {dialect} expert. Given an input question, create one syntactically correct {dialect} query to run.
Unless the user asks for a specific number of examples, query for at most {top_k} results using the LIMIT clause.
Never query for all columns from a table. Only select the columns needed to answer the question.
{quote_rule}
Pay attention to use only the column names you can see in the tables below and to which table each column belongs.
{today_rule}
Only produce read queries. Never modify data or schema.

Return exactly one SQL statement with no Markdown code fences, no explanation and no label.

Here are some examples:
{examples}

Only use the following tables:
{table_info}

Previous conversation, use it only to resolve references such as "them" or "that company":
{history}

Question: {input}
SQLQuery:`

const sqlExamples = `Question: How many companies are active?
SQLQuery: SELECT COUNT("id") FROM "company" WHERE "is_active" = 1

Question: List the names and job titles of candidates available immediately.
SQLQuery: SELECT "profile_name", "job_title" FROM "add_profile" WHERE "availability" = 'Immediate' LIMIT 25

Question: Which companies have more than 100 employees?
SQLQuery: SELECT "company_name", "number_of_employee" FROM "company" WHERE "number_of_employee" > 100 LIMIT 25

Question: How many users work in the HR department of TechNova?
SQLQuery: SELECT COUNT(u."id") FROM "users" u JOIN "company" c ON u."company_id" = c."id" WHERE u."department" = 'HR' AND c."company_name" = 'TechNova'`

type dialectRules struct {
	name         string
	quoteRule    string
	todayRule    string
	todayExample string
	backticks    bool
}

var dialects = map[string]dialectRules{
	"sqlite": {
		name:         "SQLite",
		quoteRule:    `Wrap each column name in double quotes (") to denote them as delimited identifiers.`,
		todayRule:    `Use the date('now') function to get the current date if the question involves "today".`,
		todayExample: `SELECT COUNT("id") FROM "users" WHERE date("created_at") = date('now')`,
	},
	"postgres": {
		name:         "PostgreSQL",
		quoteRule:    `Wrap each column name in double quotes (") to denote them as delimited identifiers.`,
		todayRule:    `Use the CURRENT_DATE function to get the current date if the question involves "today".`,
		todayExample: `SELECT COUNT("id") FROM "users" WHERE "created_at"::date = CURRENT_DATE`,
	},
	"mysql": {
		name:         "MySQL",
		quoteRule:    "Wrap each column name in backticks (`) to denote them as delimited identifiers.",
		todayRule:    `Use the CURDATE() function to get the current date if the question involves "today".`,
		todayExample: "SELECT COUNT(`id`) FROM `users` WHERE DATE(`created_at`) = CURDATE()",
		backticks:    true,
	},
}

// TextToSQLPrompt returns the text-to-SQL prompt for dialect ("sqlite",
// "postgres" or "mysql") with the dialect rules and worked examples filled in.
// Remaining variables: top_k, table_info, history, input.
func TextToSQLPrompt(dialect string) BasePromptTemplate {
	rules, ok := dialects[strings.ToLower(dialect)]
	if !ok {
		rules = dialects["sqlite"]
	}

	examples := sqlExamples
	if rules.backticks {
		examples = strings.ReplaceAll(examples, `"`, "`")
	}
	examples += "\n\nQuestion: How many users were created today?\nSQLQuery: " + rules.todayExample

	return NewPromptTemplate(DefaultTextToSQLTmpl, PromptTypeTextToSQL).PartialFormat(map[string]string{
		"dialect":    rules.name,
		"quote_rule": rules.quoteRule,
		"today_rule": rules.todayRule,
		"examples":   examples,
	})
}

// SQL answer synthesis.

const DefaultSQLAnswerSystemTmpl = `You are a helpful assistant for a talent management platform.
Answer the user's question using only the SQL result you are given. Use the
chat history only when it is needed to keep the conversation coherent.

Rules:
- Never mention database, table or column names, and never show the query.
- If the result says "No relevant data found." reply politely that there is no
  relevant context available that can help answer the question, without any
  technical wording.
- When the result contains several entries, format the answer in Markdown with
  a short heading, bullet points or a table.
- Strictly give your final answer in {language}.`

const DefaultSQLAnswerUserTmpl = `Chat history:
{history}

Question: {question}
SQL query: {sql_query}
SQL result:
{sql_result}

Answer:`

// DefaultSQLAnswerPrompt turns a SQL result into the final answer.
var DefaultSQLAnswerPrompt = NewChatPromptTemplate([]llm.ChatMessage{
	llm.NewSystemMessage(DefaultSQLAnswerSystemTmpl),
	llm.NewUserMessage(DefaultSQLAnswerUserTmpl),
}, PromptTypeSQLResponseSynthesis)

// Candidate recommendation.

const DefaultCandidateMatchSystemTmpl = `You are an experienced HR consultant. Using only the candidate profiles
provided, recommend the best candidate for the requirement.

Structure the answer with these sections:
## TOP CANDIDATE RECOMMENDATION
Name, candidate ID and a one paragraph justification.
## DETAILED ANALYSIS
Skills, experience, projects and availability compared with the requirement.
## ALTERNATIVE CANDIDATES
The other candidates ranked, with one line each.
## NEXT STEPS
Concrete interview or screening suggestions.

If none of the profiles fit, say so plainly.`

const DefaultCandidateMatchUserTmpl = `Requirement:
{requirement}

Candidate profiles:
{candidates}`

// DefaultCandidateMatchPrompt ranks retrieved profiles against a requirement.
var DefaultCandidateMatchPrompt = NewChatPromptTemplate([]llm.ChatMessage{
	llm.NewSystemMessage(DefaultCandidateMatchSystemTmpl),
	llm.NewUserMessage(DefaultCandidateMatchUserTmpl),
}, PromptTypeCandidateMatch)
