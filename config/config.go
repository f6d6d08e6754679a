// Package config holds the process configuration built once at startup and
// passed by value into every component constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
	"github.com/aanchal1903/BusinessOps-Chatbot/storage/chatstore"
)

// AppName names the cache directory and the keyring service.
const AppName = "businessops"

// DefaultAllowList is the set of tables the structured chain may read.
var DefaultAllowList = []string{"company", "users", "add_profile"}

// Config holds all configuration values.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Chain     ChainConfig     `yaml:"chain"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	ChatStore ChatStoreConfig `yaml:"chat_store"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// LLMConfig selects one model per role.
type LLMConfig struct {
	Router    llm.ModelConfig `yaml:"router"`
	Generator llm.ModelConfig `yaml:"generator"`
	Answer    llm.ModelConfig `yaml:"answer"`
	Matcher   llm.ModelConfig `yaml:"matcher"`
}

// EmbeddingConfig selects the profile embedding model. Provider is
// "openai" or "hashing".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"-"`
	Dimensions int    `yaml:"dimensions"`
}

// DatabaseConfig describes the relational store.
type DatabaseConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver    string           `yaml:"driver"`
	DSN       string           `yaml:"-"`
	Pool      sqldb.PoolConfig `yaml:"pool"`
	AllowList []string         `yaml:"allow_list"`
	// PolicyFile is an optional Rego module replacing the built-in table policy.
	PolicyFile string `yaml:"policy_file"`
}

// ChainConfig tunes the structured chain. Tokenizer is "tiktoken" or
// "simple" and only affects the history token budget.
type ChainConfig struct {
	TopK         int    `yaml:"top_k"`
	HistoryTurns int    `yaml:"history_turns"`
	TokenLimit   int    `yaml:"token_limit"`
	Tokenizer    string `yaml:"tokenizer"`
	Language     string `yaml:"language"`
}

// MatcherConfig tunes the candidate matcher.
type MatcherConfig struct {
	// Store selects the vector store: "chromem" persists under PersistDir,
	// "memory" keeps vectors for the life of the process.
	Store       string `yaml:"store"`
	ProfilesCSV string `yaml:"profiles_csv"`
	PersistDir  string `yaml:"persist_dir"`
	Collection  string `yaml:"collection"`
	TopK        int    `yaml:"top_k"`
}

// ChatStoreConfig selects the chat history backend: "memory" or "surrealdb".
type ChatStoreConfig struct {
	Driver      string                  `yaml:"driver"`
	PersistPath string                  `yaml:"persist_path"`
	Surreal     chatstore.SurrealConfig `yaml:"surreal"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins limits CORS and websocket upgrades. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
	// DefaultUser owns requests that carry no X-User-ID header.
	DefaultUser string `yaml:"default_user"`
	// MaxUploadBytes bounds job description uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// LogConfig configures logging. Console records use Format ("text" or
// "json"); File, when set, also receives JSON records.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DefaultCacheDir returns the default cache directory.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, ".cache", AppName)
}

// Default returns the production defaults.
func Default() Config {
	return DefaultIn(DefaultCacheDir())
}

// DefaultIn returns the production defaults with every local file placed
// under cacheDir.
func DefaultIn(cacheDir string) Config {
	return Config{
		LLM: LLMConfig{
			Router: llm.ModelConfig{
				Provider:    llm.ProviderGemini,
				Model:       llm.GeminiPro,
				Temperature: 0.1,
				MaxTokens:   16,
				Timeout:     30 * time.Second,
				MaxRetries:  2,
			},
			Generator: llm.ModelConfig{
				Provider:    llm.ProviderGroq,
				Model:       llm.GroqLlama3_70B,
				Temperature: 0.1,
				MaxTokens:   512,
				Timeout:     60 * time.Second,
				MaxRetries:  2,
			},
			Answer: llm.ModelConfig{
				Provider:    llm.ProviderGroq,
				Model:       llm.GroqLlama3_70B,
				Temperature: 0.1,
				MaxTokens:   2048,
				Timeout:     60 * time.Second,
				MaxRetries:  2,
			},
			Matcher: llm.ModelConfig{
				Provider:    llm.ProviderGroq,
				Model:       llm.GroqLlama3_70B,
				Temperature: 0,
				MaxTokens:   2048,
				Timeout:     60 * time.Second,
				MaxRetries:  2,
			},
		},
		Embedding: EmbeddingConfig{
			Provider: "hashing",
		},
		Database: DatabaseConfig{
			Driver:    "sqlite3",
			DSN:       filepath.Join(cacheDir, "talent_management.db"),
			Pool:      sqldb.DefaultPoolConfig(),
			AllowList: append([]string(nil), DefaultAllowList...),
		},
		Chain: ChainConfig{
			TopK:         25,
			HistoryTurns: 3,
			TokenLimit:   1500,
			Tokenizer:    "tiktoken",
			Language:     "ENGLISH",
		},
		Matcher: MatcherConfig{
			Store:      "chromem",
			PersistDir: filepath.Join(cacheDir, "chromem"),
			Collection: "candidate_profiles",
			TopK:       3,
		},
		ChatStore: ChatStoreConfig{
			Driver:      "memory",
			PersistPath: filepath.Join(cacheDir, "chat_store.json"),
			Surreal: chatstore.SurrealConfig{
				URL:       "ws://localhost:8000/rpc",
				Namespace: AppName,
				Database:  "chats",
				Username:  "root",
			},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			DefaultUser:    "demo_user@company.com",
			MaxUploadBytes: 10 << 20,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: LogFormatText,
		},
	}
}

// Validate checks the values that would otherwise fail deep inside a component.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is empty"))
	}
	if len(c.Database.AllowList) == 0 {
		errs = append(errs, errors.New("database.allow_list is empty"))
	}
	if c.Database.Pool.PoolTimeout <= 0 {
		errs = append(errs, errors.New("database.pool.pool_timeout must be positive"))
	}
	switch c.ChatStore.Driver {
	case "memory", "surrealdb":
	default:
		errs = append(errs, fmt.Errorf("chat_store.driver must be memory or surrealdb, got %q", c.ChatStore.Driver))
	}
	switch c.Embedding.Provider {
	case "openai", "hashing":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be openai or hashing, got %q", c.Embedding.Provider))
	}
	switch c.Chain.Tokenizer {
	case "tiktoken", "simple":
	default:
		errs = append(errs, fmt.Errorf("chain.tokenizer must be tiktoken or simple, got %q", c.Chain.Tokenizer))
	}
	if c.Chain.TopK <= 0 {
		errs = append(errs, errors.New("chain.top_k must be positive"))
	}
	if c.Matcher.TopK <= 0 {
		errs = append(errs, errors.New("matcher.top_k must be positive"))
	}
	switch c.Matcher.Store {
	case "chromem", "memory":
	default:
		errs = append(errs, fmt.Errorf("matcher.store must be chromem or memory, got %q", c.Matcher.Store))
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SQLDialect maps the configured driver to the SQL dialect.
func (c DatabaseConfig) SQLDialect() sqldb.Dialect {
	if c.Driver == "postgres" {
		return sqldb.DialectPostgres
	}
	return sqldb.DialectSQLite
}
