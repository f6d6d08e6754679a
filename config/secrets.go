package config

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/99designs/keyring"
	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
)

// Environment variables and keyring keys holding secrets.
const (
	EnvGroqAPIKey    = "GROQ_API_KEY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvDatabaseDSN   = "BUSINESSOPS_DB_DSN"
	EnvSurrealDBPass = "SURREALDB_PASS"
)

// ErrSecretNotFound is returned when neither the environment nor the
// keyring holds a secret.
var ErrSecretNotFound = errors.New("secret not found")

// Secrets resolves credentials from the environment first and then from the
// OS credential store. The keyring is opened on first use.
type Secrets struct {
	lookup func(string) (string, bool)
	open   func() (keyring.Keyring, error)

	once    sync.Once
	ring    keyring.Keyring
	ringErr error
}

// SecretsOption configures Secrets.
type SecretsOption func(*Secrets)

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(lookup func(string) (string, bool)) SecretsOption {
	return func(s *Secrets) {
		s.lookup = lookup
	}
}

// WithKeyring uses ring instead of the OS keyring.
func WithKeyring(ring keyring.Keyring) SecretsOption {
	return func(s *Secrets) {
		s.open = func() (keyring.Keyring, error) { return ring, nil }
	}
}

// WithoutKeyring disables the keyring fallback.
func WithoutKeyring() SecretsOption {
	return func(s *Secrets) {
		s.open = func() (keyring.Keyring, error) { return nil, ErrSecretNotFound }
	}
}

// NewSecrets creates a Secrets resolver.
func NewSecrets(opts ...SecretsOption) *Secrets {
	s := &Secrets{
		lookup: os.LookupEnv,
		open: func() (keyring.Keyring, error) {
			return keyring.Open(keyring.Config{
				ServiceName: AppName,
				PassPrefix:  AppName,
			})
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the secret stored under key.
func (s *Secrets) Get(key string) (string, error) {
	if v, ok := s.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}

	s.once.Do(func() {
		s.ring, s.ringErr = s.open()
	})
	if s.ringErr != nil || s.ring == nil {
		return "", ErrSecretNotFound
	}

	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrSecretNotFound
		}
		return "", err
	}
	return string(item.Data), nil
}

// Apply fills the credentials of cfg. Missing secrets are left empty so the
// providers fall back to their own defaults; the DSN keeps its configured
// value when no secret overrides it.
func (s *Secrets) Apply(cfg *Config) error {
	keyFor := map[string]string{}
	for _, key := range []string{EnvGroqAPIKey, EnvOpenAIAPIKey, EnvGeminiAPIKey} {
		v, err := s.Get(key)
		if err != nil && !errors.Is(err, ErrSecretNotFound) {
			return err
		}
		keyFor[key] = v
	}

	for _, mc := range []*llm.ModelConfig{&cfg.LLM.Router, &cfg.LLM.Generator, &cfg.LLM.Answer, &cfg.LLM.Matcher} {
		if mc.APIKey != "" {
			continue
		}
		switch mc.Provider {
		case llm.ProviderOpenAI:
			mc.APIKey = keyFor[EnvOpenAIAPIKey]
		case llm.ProviderGemini:
			mc.APIKey = keyFor[EnvGeminiAPIKey]
		default:
			mc.APIKey = keyFor[EnvGroqAPIKey]
		}
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = keyFor[EnvOpenAIAPIKey]
	}

	if dsn, err := s.Get(EnvDatabaseDSN); err == nil {
		cfg.Database.DSN = dsn
	} else if !errors.Is(err, ErrSecretNotFound) {
		return err
	}

	if cfg.ChatStore.Surreal.Password == "" {
		pass, err := s.Get(EnvSurrealDBPass)
		if err != nil && !errors.Is(err, ErrSecretNotFound) {
			return err
		}
		cfg.ChatStore.Surreal.Password = pass
	}
	return nil
}
