package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aanchal1903/BusinessOps-Chatbot/config"
	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aqua777/krait"
)

// Config keys for krait
const (
	KeyCacheDir          = "cache.dir"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyLogFile           = "log.file"
	KeyDBDriver          = "database.driver"
	KeyDBPath            = "database.path"
	KeyAllowList         = "database.allow-list"
	KeyPolicyFile        = "database.policy-file"
	KeyRouterProvider    = "llm.router-provider"
	KeyRouterModel       = "llm.router-model"
	KeyModelProvider     = "llm.provider"
	KeyModel             = "llm.model"
	KeyModelBaseURL      = "llm.base-url"
	KeyEmbeddingProvider = "embedding.provider"
	KeyEmbeddingModel    = "embedding.model"
	KeyTopK              = "chain.top-k"
	KeyHistoryTurns      = "chain.history-turns"
	KeyTokenizer         = "chain.tokenizer"
	KeyLanguage          = "chain.language"
	KeyProfilesCSV       = "matcher.profiles-csv"
	KeyMatcherTopK       = "matcher.top-k"
	KeyVectorStore       = "matcher.store"
	KeyChatStore         = "chat-store.driver"
	KeySurrealURL        = "chat-store.surreal-url"
	KeyServerAddr        = "server.addr"
	KeyAllowedOrigins    = "server.allowed-origins"
	KeyDefaultUser       = "server.default-user"
)

// Command keys
const (
	KeyUser     = "user"
	KeyQuestion = "question"
	KeyDocument = "document"
	KeyCSV      = "csv"
)

// values reads configuration keys. krait.GetX satisfies it in production.
type values struct {
	String      func(key string) string
	Int         func(key string) int
	StringSlice func(key string) []string
}

func kraitValues() values {
	return values{
		String:      krait.GetString,
		Int:         krait.GetInt,
		StringSlice: krait.GetStringSlice,
	}
}

// buildConfig layers flag, env and config file values over the defaults
// and resolves secrets.
func buildConfig(v values, secrets *config.Secrets) (config.Config, error) {
	cacheDir := v.String(KeyCacheDir)
	if cacheDir == "" {
		cacheDir = config.DefaultCacheDir()
	}
	cfg := config.DefaultIn(cacheDir)

	setString(&cfg.Log.Level, v.String(KeyLogLevel))
	setString(&cfg.Log.Format, v.String(KeyLogFormat))
	setString(&cfg.Log.File, v.String(KeyLogFile))

	setString(&cfg.Database.Driver, v.String(KeyDBDriver))
	setString(&cfg.Database.DSN, v.String(KeyDBPath))
	if tables := v.StringSlice(KeyAllowList); len(tables) > 0 {
		cfg.Database.AllowList = tables
	}
	setString(&cfg.Database.PolicyFile, v.String(KeyPolicyFile))

	if p := v.String(KeyRouterProvider); p != "" {
		cfg.LLM.Router.Provider = llm.Provider(p)
	}
	setString(&cfg.LLM.Router.Model, v.String(KeyRouterModel))
	for _, mc := range []*llm.ModelConfig{&cfg.LLM.Generator, &cfg.LLM.Answer, &cfg.LLM.Matcher} {
		if p := v.String(KeyModelProvider); p != "" {
			mc.Provider = llm.Provider(p)
		}
		setString(&mc.Model, v.String(KeyModel))
		setString(&mc.BaseURL, v.String(KeyModelBaseURL))
	}

	setString(&cfg.Embedding.Provider, v.String(KeyEmbeddingProvider))
	setString(&cfg.Embedding.Model, v.String(KeyEmbeddingModel))

	setInt(&cfg.Chain.TopK, v.Int(KeyTopK))
	setInt(&cfg.Chain.HistoryTurns, v.Int(KeyHistoryTurns))
	setString(&cfg.Chain.Tokenizer, v.String(KeyTokenizer))
	setString(&cfg.Chain.Language, v.String(KeyLanguage))

	setString(&cfg.Matcher.ProfilesCSV, v.String(KeyProfilesCSV))
	setInt(&cfg.Matcher.TopK, v.Int(KeyMatcherTopK))
	setString(&cfg.Matcher.Store, v.String(KeyVectorStore))

	setString(&cfg.ChatStore.Driver, v.String(KeyChatStore))
	setString(&cfg.ChatStore.Surreal.URL, v.String(KeySurrealURL))

	setString(&cfg.Server.Addr, v.String(KeyServerAddr))
	if origins := v.StringSlice(KeyAllowedOrigins); len(origins) > 0 {
		cfg.Server.AllowedOrigins = origins
	}
	setString(&cfg.Server.DefaultUser, v.String(KeyDefaultUser))

	if err := secrets.Apply(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to resolve secrets: %w", err)
	}
	return cfg, cfg.Validate()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// loadConfig builds the configuration and the process logger. The returned
// cleanup closes the log file.
func loadConfig() (config.Config, *slog.Logger, func() error, error) {
	cfg, err := buildConfig(kraitValues(), config.NewSecrets())
	if err != nil {
		return cfg, nil, nil, err
	}
	logger, cleanup, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}
