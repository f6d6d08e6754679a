package main

import (
	"path/filepath"
	"testing"

	"github.com/aanchal1903/BusinessOps-Chatbot/config"
	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapValues(strs map[string]string, ints map[string]int, slices map[string][]string) values {
	return values{
		String:      func(key string) string { return strs[key] },
		Int:         func(key string) int { return ints[key] },
		StringSlice: func(key string) []string { return slices[key] },
	}
}

func envSecrets(env map[string]string) *config.Secrets {
	return config.NewSecrets(
		config.WithoutKeyring(),
		config.WithLookupEnv(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}),
	)
}

func TestBuildConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := buildConfig(mapValues(map[string]string{KeyCacheDir: dir}, nil, nil), envSecrets(nil))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "talent_management.db"), cfg.Database.DSN)
	assert.Equal(t, filepath.Join(dir, "chromem"), cfg.Matcher.PersistDir)
	assert.Equal(t, config.DefaultAllowList, cfg.Database.AllowList)
	assert.Equal(t, 25, cfg.Chain.TopK)
	assert.Equal(t, llm.ProviderGroq, cfg.LLM.Generator.Provider)
}

func TestBuildConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := buildConfig(mapValues(
		map[string]string{
			KeyCacheDir:       dir,
			KeyDBPath:         filepath.Join(dir, "other.db"),
			KeyModelProvider:  "openai",
			KeyModel:          "gpt-4o-mini",
			KeyTokenizer:      "simple",
			KeyChatStore:      "surrealdb",
			KeySurrealURL:     "ws://surreal:8000/rpc",
			KeyServerAddr:     ":9090",
			KeyDefaultUser:    "hr@company.com",
			KeyLogLevel:       "DEBUG",
			KeyLogFormat:      "json",
			KeyVectorStore:    "memory",
			KeyRouterProvider: "groq",
		},
		map[string]int{KeyTopK: 10, KeyMatcherTopK: 5},
		map[string][]string{
			KeyAllowList:      {"company"},
			KeyAllowedOrigins: {"http://localhost:3000"},
		},
	), envSecrets(map[string]string{
		config.EnvOpenAIAPIKey: "sk-openai",
		config.EnvGroqAPIKey:   "gsk-groq",
	}))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "other.db"), cfg.Database.DSN)
	assert.Equal(t, []string{"company"}, cfg.Database.AllowList)
	for _, mc := range []llm.ModelConfig{cfg.LLM.Generator, cfg.LLM.Answer, cfg.LLM.Matcher} {
		assert.Equal(t, llm.ProviderOpenAI, mc.Provider)
		assert.Equal(t, "gpt-4o-mini", mc.Model)
		assert.Equal(t, "sk-openai", mc.APIKey)
	}
	assert.Equal(t, llm.ProviderGroq, cfg.LLM.Router.Provider)
	assert.Equal(t, "gsk-groq", cfg.LLM.Router.APIKey)
	assert.Equal(t, 10, cfg.Chain.TopK)
	assert.Equal(t, 5, cfg.Matcher.TopK)
	assert.Equal(t, "simple", cfg.Chain.Tokenizer)
	assert.Equal(t, "surrealdb", cfg.ChatStore.Driver)
	assert.Equal(t, "ws://surreal:8000/rpc", cfg.ChatStore.Surreal.URL)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "hr@company.com", cfg.Server.DefaultUser)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, config.LogFormatJSON, cfg.Log.Format)
	assert.Equal(t, "memory", cfg.Matcher.Store)
}

func TestBuildConfig_SecretDSN(t *testing.T) {
	cfg, err := buildConfig(mapValues(map[string]string{
		KeyCacheDir: t.TempDir(),
		KeyDBDriver: "postgres",
	}, nil, nil), envSecrets(map[string]string{
		config.EnvDatabaseDSN: "postgres://talent@localhost/talent",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://talent@localhost/talent", cfg.Database.DSN)
}

func TestBuildConfig_Invalid(t *testing.T) {
	_, err := buildConfig(mapValues(map[string]string{
		KeyCacheDir:    t.TempDir(),
		KeyTokenizer:   "bpe",
		KeyVectorStore: "qdrant",
		KeyLogFormat:   "xml",
	}, nil, nil), envSecrets(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain.tokenizer")
	assert.Contains(t, err.Error(), "matcher.store")
	assert.Contains(t, err.Error(), "log.format")
}
