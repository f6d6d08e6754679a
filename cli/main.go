package main

import (
	"fmt"
	"os"

	"github.com/aanchal1903/BusinessOps-Chatbot/config"
	"github.com/aqua777/krait"
)

func main() {
	chatCmd := krait.New("chat", "Interactive chat", "Ask questions about companies, users and candidate profiles in a REPL").
		WithStringP(KeyUser, "User that owns the chat history", "user", "u", "BUSINESSOPS_USER", "").
		WithRun(runChat)

	askCmd := krait.New("ask", "Answer one question", "Route one question and print the answer").
		WithStringP(KeyQuestion, "Question to ask", "question", "q", "BUSINESSOPS_QUESTION", "").
		WithStringP(KeyDocument, "Job description PDF or text file to match candidates against", "document", "d", "BUSINESSOPS_DOCUMENT", "").
		WithRun(runAsk)

	seedCmd := krait.New("seed", "Load the sample database", "Create the company, users and add_profile tables and load the sample rows").
		WithRun(runSeed)

	indexCmd := krait.New("index", "Index candidate profiles", "Embed candidate profiles from a CSV file or the add_profile table").
		WithStringP(KeyCSV, "Profile CSV (defaults to the add_profile table)", "csv", "", "BUSINESSOPS_PROFILES_CSV", "").
		WithRun(runIndex)

	serveCmd := krait.New("serve", "Serve the HTTP API", "Serve the query, streaming and chat history endpoints").
		WithRun(runServe)

	app := krait.App(config.AppName, "Talent management chatbot", "Answer questions about the talent database and match candidates to job descriptions").
		WithConfig("", "config", "", "BUSINESSOPS_CONFIG").
		// Global options (shared across subcommands)
		WithStringP(KeyCacheDir, "Directory for the local database, vector store and chats", "cache-dir", "", "BUSINESSOPS_CACHE_DIR", config.DefaultCacheDir()).
		WithStringP(KeyLogLevel, "Log level (DEBUG, INFO, WARN, ERROR)", "log-level", "", "BUSINESSOPS_LOG_LEVEL", "INFO").
		WithStringP(KeyLogFormat, "Console log format (text or json)", "log-format", "", "BUSINESSOPS_LOG_FORMAT", "").
		WithStringP(KeyLogFile, "Also append JSON logs to this file", "log-file", "", "BUSINESSOPS_LOG_FILE", "").
		WithStringP(KeyDBDriver, "Database driver (sqlite3 or postgres)", "db-driver", "", "BUSINESSOPS_DB_DRIVER", "sqlite3").
		WithStringP(KeyDBPath, "SQLite database file", "db-path", "", "BUSINESSOPS_DB_PATH", "").
		WithStringSliceP(KeyAllowList, "Tables the chatbot may read", "allow-list", "", "BUSINESSOPS_ALLOW_LIST", config.DefaultAllowList).
		WithStringP(KeyPolicyFile, "Rego module replacing the built-in table policy", "policy-file", "", "BUSINESSOPS_POLICY_FILE", "").
		WithStringP(KeyRouterProvider, "Router model provider", "router-provider", "", "BUSINESSOPS_ROUTER_PROVIDER", "").
		WithStringP(KeyRouterModel, "Router model", "router-model", "", "BUSINESSOPS_ROUTER_MODEL", "").
		WithStringP(KeyModelProvider, "Provider of the SQL, answer and matcher models", "provider", "p", "BUSINESSOPS_PROVIDER", "").
		WithStringP(KeyModel, "SQL, answer and matcher model", "model", "m", "BUSINESSOPS_MODEL", "").
		WithStringP(KeyModelBaseURL, "Base URL of an OpenAI-compatible endpoint", "base-url", "", "BUSINESSOPS_BASE_URL", "").
		WithStringP(KeyEmbeddingProvider, "Embedding provider (openai or hashing)", "embedding-provider", "", "BUSINESSOPS_EMBEDDING_PROVIDER", "").
		WithStringP(KeyEmbeddingModel, "Embedding model", "embedding-model", "", "BUSINESSOPS_EMBEDDING_MODEL", "").
		WithIntP(KeyTopK, "Rows fetched per structured query", "top-k", "k", "BUSINESSOPS_TOP_K", 0).
		WithIntP(KeyHistoryTurns, "Conversation turns shown to the SQL generator", "history-turns", "", "BUSINESSOPS_HISTORY_TURNS", 0).
		WithStringP(KeyTokenizer, "History tokenizer (tiktoken or simple)", "tokenizer", "", "BUSINESSOPS_TOKENIZER", "").
		WithStringP(KeyLanguage, "Answer language", "language", "l", "BUSINESSOPS_LANGUAGE", "").
		WithStringP(KeyProfilesCSV, "Candidate profile CSV indexed on first use", "profiles-csv", "", "BUSINESSOPS_PROFILES_CSV", "").
		WithIntP(KeyMatcherTopK, "Candidates retrieved per match", "matcher-top-k", "", "BUSINESSOPS_MATCHER_TOP_K", 0).
		WithStringP(KeyVectorStore, "Candidate vector store (chromem or memory)", "vector-store", "", "BUSINESSOPS_VECTOR_STORE", "").
		WithStringP(KeyChatStore, "Chat store (memory or surrealdb)", "chat-store", "", "BUSINESSOPS_CHAT_STORE", "").
		WithStringP(KeySurrealURL, "SurrealDB websocket URL", "surreal-url", "", "SURREALDB_URL", "").
		WithStringP(KeyServerAddr, "HTTP listen address", "addr", "a", "BUSINESSOPS_ADDR", "").
		WithStringSliceP(KeyAllowedOrigins, "Allowed CORS and websocket origins", "allowed-origins", "", "BUSINESSOPS_ALLOWED_ORIGINS", nil).
		WithStringP(KeyDefaultUser, "User of requests without an X-User-ID header", "default-user", "", "BUSINESSOPS_DEFAULT_USER", "").
		WithCommand(chatCmd).
		WithCommand(askCmd).
		WithCommand(seedCmd).
		WithCommand(indexCmd).
		WithCommand(serveCmd).
		WithRun(func(args []string) error {
			// Default action: start the chat
			return runChat(args)
		})

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
