package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aanchal1903/BusinessOps-Chatbot/config"
	"github.com/aanchal1903/BusinessOps-Chatbot/embedding"
	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/matcher"
	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/aanchal1903/BusinessOps-Chatbot/metrics"
	"github.com/aanchal1903/BusinessOps-Chatbot/policy"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/reader"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/store"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/store/chromem"
	"github.com/aanchal1903/BusinessOps-Chatbot/router"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqlchain"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
	"github.com/aanchal1903/BusinessOps-Chatbot/storage/chatstore"
	"github.com/prometheus/client_golang/prometheus"
)

// HistoryEncoding is the tiktoken encoding used to bound chat history.
const HistoryEncoding = "cl100k_base"

// Runtime is a System wired from configuration together with the resources
// it owns.
type Runtime struct {
	Config  config.Config
	DB      sqldb.Database
	Store   store.VectorStore
	Matcher *matcher.Matcher
	Chats   chatstore.ChatStore
	Metrics *metrics.Metrics
	System  *System

	logger  *slog.Logger
	closers []func() error
}

// NewRuntime opens the database, vector store and chat store described by
// cfg and wires the router, structured chain and matcher into a System.
// Metrics register on reg; a nil reg disables them.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (_ *Runtime, err error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &Runtime{Config: cfg, logger: logger}
	if reg != nil {
		rt.Metrics = metrics.NewMetrics(reg)
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	if rt.DB, err = openDatabase(ctx, cfg.Database, logger); err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.DB.Close)

	access, err := policy.LoadTableAccess(ctx, cfg.Database.PolicyFile)
	if err != nil {
		return nil, err
	}

	routerLLM, err := llm.NewFromConfig(cfg.LLM.Router, logger, rt.Metrics)
	if err != nil {
		return nil, fmt.Errorf("router model: %w", err)
	}
	generatorLLM, err := llm.NewFromConfig(cfg.LLM.Generator, logger, rt.Metrics)
	if err != nil {
		return nil, fmt.Errorf("generator model: %w", err)
	}
	answerLLM, err := llm.NewFromConfig(cfg.LLM.Answer, logger, rt.Metrics)
	if err != nil {
		return nil, fmt.Errorf("answer model: %w", err)
	}
	matcherLLM, err := llm.NewFromConfig(cfg.LLM.Matcher, logger, rt.Metrics)
	if err != nil {
		return nil, fmt.Errorf("matcher model: %w", err)
	}

	chain := sqlchain.NewChain(
		sqlchain.NewGenerator(generatorLLM, sqldb.NewSchemaInspector(rt.DB), cfg.Database.SQLDialect(),
			sqlchain.WithTopK(cfg.Chain.TopK),
			sqlchain.WithGeneratorLogger(logger)),
		sqlchain.NewExecutor(rt.DB,
			sqlchain.WithGuard(sqldb.NewGuard(sqldb.WithPolicy(access), sqldb.WithGuardLogger(logger))),
			sqlchain.WithExecutorLogger(logger)),
		sqlchain.NewSynthesizer(answerLLM, sqlchain.WithSynthesizerLogger(logger)),
		sqlchain.WithHistoryWindow(newHistoryWindow(cfg.Chain, logger)),
		sqlchain.WithStageObserver(rt.Metrics),
		sqlchain.WithChainLogger(logger),
	)

	if rt.Store, err = newVectorStore(cfg.Matcher); err != nil {
		return nil, err
	}
	rt.Matcher = matcher.NewMatcher(newEmbedding(cfg.Embedding, logger), rt.Store, matcherLLM,
		matcher.WithTopK(cfg.Matcher.TopK),
		matcher.WithMatcherLogger(logger))
	rt.Metrics.SetIndexedProfiles(rt.Store.Count())

	if rt.Chats, err = rt.openChatStore(ctx, cfg.ChatStore); err != nil {
		return nil, err
	}

	rt.System = NewSystem(
		router.NewQueryRouter(routerLLM, router.WithLogger(logger)),
		chain,
		rt.Matcher,
		WithChatStore(rt.Chats),
		WithObserver(rt.Metrics),
		WithAllowList(cfg.Database.AllowList),
		WithHistoryTurns(cfg.Chain.HistoryTurns),
		WithLanguage(cfg.Chain.Language),
		WithSystemLogger(logger),
	)
	return rt, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (sqldb.Database, error) {
	if cfg.Driver == "postgres" {
		db, err := sqldb.NewPostgres(ctx, cfg.DSN, cfg.Pool, sqldb.WithPostgresLogger(logger))
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	if dir := filepath.Dir(cfg.DSN); cfg.DSN != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqldb.NewSQLite(cfg.DSN, cfg.Pool, sqldb.WithSQLiteLogger(logger))
	if err != nil {
		return nil, err
	}
	return db, nil
}

func newHistoryWindow(cfg config.ChainConfig, logger *slog.Logger) *memory.HistoryWindow {
	opts := []memory.HistoryWindowOption{
		memory.WithMaxTurns(cfg.HistoryTurns),
		memory.WithTokenLimit(cfg.TokenLimit),
	}
	if cfg.Tokenizer != "tiktoken" {
		return memory.NewHistoryWindow(opts...)
	}
	tokenizer, err := memory.NewTikTokenizer(HistoryEncoding)
	if err != nil {
		logger.Warn("Falling back to the default tokenizer", "encoding", HistoryEncoding, "error", err)
	} else {
		opts = append(opts, memory.WithTokenizer(tokenizer))
	}
	return memory.NewHistoryWindow(opts...)
}

func newEmbedding(cfg config.EmbeddingConfig, logger *slog.Logger) embedding.EmbeddingModel {
	if cfg.Provider != "openai" {
		return embedding.NewHashingEmbedding(cfg.Dimensions)
	}
	opts := []embedding.OpenAIEmbeddingOption{
		embedding.WithEmbeddingAPIKey(cfg.APIKey),
		embedding.WithEmbeddingLogger(logger),
	}
	if cfg.Model != "" {
		opts = append(opts, embedding.WithEmbeddingModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, embedding.WithEmbeddingBaseURL(cfg.BaseURL))
	}
	return embedding.NewOpenAIEmbedding(opts...)
}

func newVectorStore(cfg config.MatcherConfig) (store.VectorStore, error) {
	if cfg.Store == "memory" {
		return store.NewSimpleVectorStore(), nil
	}
	vs, err := chromem.NewChromemStore(cfg.PersistDir, cfg.Collection)
	if err != nil {
		return nil, err
	}
	return vs, nil
}

func (rt *Runtime) openChatStore(ctx context.Context, cfg config.ChatStoreConfig) (chatstore.ChatStore, error) {
	if cfg.Driver == "surrealdb" {
		chats, err := chatstore.NewSurrealChatStore(ctx, cfg.Surreal, rt.logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { return chats.Close(context.Background()) })
		if err := chats.InitSchema(ctx); err != nil {
			return nil, err
		}
		return chats, nil
	}

	if cfg.PersistPath == "" {
		return chatstore.NewSimpleChatStore(), nil
	}
	chats, err := chatstore.SimpleChatStoreFromPersistPath(ctx, cfg.PersistPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat store: %w", err)
	}
	rt.closers = append(rt.closers, func() error {
		if err := os.MkdirAll(filepath.Dir(cfg.PersistPath), 0755); err != nil {
			return err
		}
		return chats.Persist(context.Background(), cfg.PersistPath)
	})
	return chats, nil
}

// Logger returns the logger the runtime components share.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// Seed creates the fixture tables and loads their rows.
func (rt *Runtime) Seed(ctx context.Context) error {
	return sqldb.Seed(ctx, rt.DB)
}

// IndexProfiles embeds candidate profiles into the vector store. Profiles
// come from csvPath when set, otherwise from the add_profile table.
func (rt *Runtime) IndexProfiles(ctx context.Context, csvPath string) (int, error) {
	var (
		profiles []reader.Profile
		err      error
	)
	if csvPath != "" {
		profiles, err = reader.NewProfileCSVReader(csvPath).LoadProfiles(ctx)
	} else {
		profiles, err = matcher.LoadProfiles(ctx, rt.DB)
	}
	if err != nil {
		return 0, err
	}

	n, err := rt.Matcher.Index(ctx, profiles)
	if err != nil {
		return 0, err
	}
	rt.Metrics.SetIndexedProfiles(rt.Store.Count())
	return n, nil
}

// EnsureIndexed indexes profiles when the vector store is empty.
func (rt *Runtime) EnsureIndexed(ctx context.Context) error {
	if rt.Store.Count() > 0 {
		return nil
	}
	n, err := rt.IndexProfiles(ctx, rt.Config.Matcher.ProfilesCSV)
	if err != nil {
		return fmt.Errorf("failed to index candidate profiles: %w", err)
	}
	rt.logger.Info("Indexed candidate profiles on startup", "count", n)
	return nil
}

// Close releases every resource in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
