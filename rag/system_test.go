package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/embedding"
	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/matcher"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/reader"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/store"
	"github.com/aanchal1903/BusinessOps-Chatbot/router"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqlchain"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
	"github.com/aanchal1903/BusinessOps-Chatbot/storage/chatstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activeCountSQL = `SELECT COUNT(id) FROM company WHERE is_active = 1`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	system    *System
	routerLLM *llm.MockLLM
	sqlLLM    *llm.MockLLM
	answerLLM *llm.MockLLM
	matchLLM  *llm.MockLLM
	embedder  *embedding.MockEmbeddingModel
	chats     *chatstore.SimpleChatStore
}

type fixtureOptions struct {
	routerLLM *llm.MockLLM
	sqlLLM    *llm.MockLLM
	answerLLM *llm.MockLLM
	observer  Observer
	// wrapDB replaces the store seen by the structured chain
	wrapDB    func(sqldb.Database) sqldb.Database
}

func newFixture(t *testing.T, o fixtureOptions) *fixture {
	t.Helper()
	ctx := context.Background()
	log := quietLogger()

	db, err := sqldb.NewSQLite(":memory:", sqldb.PoolConfig{PoolTimeout: time.Second}, sqldb.WithSQLiteLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqldb.Seed(ctx, db))

	f := &fixture{
		routerLLM: o.routerLLM,
		sqlLLM:    o.sqlLLM,
		answerLLM: o.answerLLM,
		matchLLM:  llm.NewMockLLM("Aditya Sharma is the strongest match."),
		chats:     chatstore.NewSimpleChatStore(),
	}
	if f.routerLLM == nil {
		f.routerLLM = llm.NewMockLLM("STRUCTURED_QUERY")
	}
	if f.sqlLLM == nil {
		f.sqlLLM = llm.NewMockLLM("SQLQuery: " + activeCountSQL)
	}
	if f.answerLLM == nil {
		f.answerLLM = llm.NewMockLLM("There are 6 active companies.")
	}

	hashing := embedding.NewHashingEmbedding(64)
	f.embedder = &embedding.MockEmbeddingModel{Fn: func(text string) []float64 {
		v, _ := hashing.GetTextEmbedding(ctx, text)
		return v
	}}

	var chainDB sqldb.Database = db
	if o.wrapDB != nil {
		chainDB = o.wrapDB(db)
	}
	chain := sqlchain.NewChain(
		sqlchain.NewGenerator(f.sqlLLM, sqldb.NewSchemaInspector(chainDB), sqldb.DialectSQLite, sqlchain.WithGeneratorLogger(log)),
		sqlchain.NewExecutor(chainDB, sqlchain.WithExecutorLogger(log)),
		sqlchain.NewSynthesizer(f.answerLLM, sqlchain.WithSynthesizerLogger(log)),
		sqlchain.WithChainLogger(log),
	)

	m := matcher.NewMatcher(f.embedder, store.NewSimpleVectorStore(), f.matchLLM, matcher.WithMatcherLogger(log))
	profiles, err := matcher.LoadProfiles(ctx, db)
	require.NoError(t, err)
	_, err = m.Index(ctx, profiles)
	require.NoError(t, err)

	opts := []SystemOption{
		WithChatStore(f.chats),
		WithAllowList([]string{"company", "users", "add_profile"}),
		WithSystemLogger(log),
	}
	if o.observer != nil {
		opts = append(opts, WithObserver(o.observer))
	}
	f.system = NewSystem(router.NewQueryRouter(f.routerLLM, router.WithLogger(log)), chain, m, opts...)
	return f
}

type recordingObserver struct {
	routes   []string
	started  int
	finished int
}

func (o *recordingObserver) ObserveRoute(route string) {
	o.routes = append(o.routes, route)
}

func (o *recordingObserver) QueryStarted() func() {
	o.started++
	return func() { o.finished++ }
}

func TestSystem_ProcessQuery_Structured(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	resp := f.system.ProcessQuery(context.Background(), Query{Question: "How many companies are active?"})
	require.NoError(t, resp.Err)

	assert.Equal(t, router.Structured, resp.ChainType)
	assert.Equal(t, "How many companies are active?", resp.Query)
	assert.Equal(t, activeCountSQL, resp.SQLQuery)
	assert.Equal(t, "There are 6 active companies.", resp.Answer)
	assert.NotEmpty(t, resp.MessageID)
	assert.NotEmpty(t, resp.ChatID)
	assert.Empty(t, resp.Candidates)

	assert.Equal(t, 1, f.routerLLM.Calls())
	assert.Zero(t, f.matchLLM.Calls())

	prompts := f.answerLLM.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "6")
}

func TestSystem_ProcessQuery_History(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	first := f.system.ProcessQuery(ctx, Query{Question: "How many companies are active?", UserID: "u1", ChatID: "c1"})
	require.NoError(t, first.Err)
	assert.Equal(t, "c1", first.ChatID)

	second := f.system.ProcessQuery(ctx, Query{Question: "And how many are inactive?", UserID: "u1", ChatID: "c1"})
	require.NoError(t, second.Err)

	prompts := f.sqlLLM.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "How many companies are active?")
	assert.Contains(t, prompts[1], "There are 6 active companies.")

	chat, err := f.chats.GetChat(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 4)
	assert.Equal(t, "How many companies are active?", chat.Title)
	assert.Equal(t, "And how many are inactive?", chat.Messages[2].Message)

	t.Run("anonymous queries are not recorded", func(t *testing.T) {
		resp := f.system.ProcessQuery(ctx, Query{Question: "How many companies are active?", ChatID: "c2"})
		require.NoError(t, resp.Err)

		_, err := f.chats.GetChat(ctx, "", "c2")
		assert.ErrorIs(t, err, chatstore.ErrChatNotFound)
	})
}

func TestSystem_ProcessQuery_Unstructured(t *testing.T) {
	f := newFixture(t, fixtureOptions{routerLLM: llm.NewMockLLM("UNSTRUCTURED_QUERY")})
	ctx := context.Background()

	t.Run("question", func(t *testing.T) {
		resp := f.system.ProcessQuery(ctx, Query{Question: "Recommend a Go developer who knows Kafka"})
		require.NoError(t, resp.Err)

		assert.Equal(t, router.Unstructured, resp.ChainType)
		assert.Empty(t, resp.SQLQuery)
		assert.Equal(t, "Aditya Sharma is the strongest match.", resp.Answer)
		assert.Len(t, resp.Candidates, matcher.DefaultTopK)
		assert.NotEmpty(t, resp.MessageID)
		assert.Zero(t, f.sqlLLM.Calls())
	})

	t.Run("job description document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jd.txt")
		require.NoError(t, os.WriteFile(path, []byte("Senior backend engineer with Kafka and Go"), 0644))

		resp := f.system.ProcessQuery(ctx, Query{Question: "Prefer immediate joiners", DocumentPath: path})
		require.NoError(t, resp.Err)
		assert.Equal(t, router.Unstructured, resp.ChainType)

		prompts := f.matchLLM.Prompts()
		last := prompts[len(prompts)-1]
		assert.Contains(t, last, "Senior backend engineer with Kafka and Go")
		assert.Contains(t, last, "Additional notes: Prefer immediate joiners")
	})

	t.Run("document without question skips routing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jd.txt")
		require.NoError(t, os.WriteFile(path, []byte("React developer for a dashboard rewrite"), 0644))

		routed := f.routerLLM.Calls()
		resp := f.system.ProcessQuery(ctx, Query{DocumentPath: path})
		require.NoError(t, resp.Err)
		assert.Equal(t, router.Unstructured, resp.ChainType)
		assert.Equal(t, routed, f.routerLLM.Calls())
	})

	t.Run("missing document fails before any model work", func(t *testing.T) {
		embedded := f.embedder.Calls()
		matched := f.matchLLM.Calls()
		routed := f.routerLLM.Calls()

		resp := f.system.ProcessQuery(ctx, Query{
			Question:     "Match this role",
			DocumentPath: filepath.Join(t.TempDir(), "missing.pdf"),
		})
		require.Error(t, resp.Err)
		assert.ErrorIs(t, resp.Err, reader.ErrDocumentNotFound)
		assert.True(t, strings.HasPrefix(resp.Answer, ErrorAnswerPrefix))
		assert.Equal(t, embedded, f.embedder.Calls())
		assert.Equal(t, matched, f.matchLLM.Calls())
		assert.Equal(t, routed, f.routerLLM.Calls())
	})
}

// lostConnectionDB fails introspection with the text of a refused login.
type lostConnectionDB struct {
	sqldb.Database
}

func (lostConnectionDB) Columns(ctx context.Context, table string) ([]sqldb.Column, error) {
	return nil, errors.New("failed to connect to user=postgres database=businessops: 10.0.0.5:5432 (db.internal): password authentication failed")
}

func TestSystem_ProcessQuery_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("empty question", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		resp := f.system.ProcessQuery(ctx, Query{Question: "   "})
		assert.ErrorIs(t, resp.Err, ErrEmptyQuestion)
		assert.True(t, resp.Failed())
		assert.Zero(t, f.routerLLM.Calls())
	})

	t.Run("router failure", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{routerLLM: llm.NewMockLLMWithError(errors.New("model unavailable"))})
		resp := f.system.ProcessQuery(ctx, Query{Question: "How many companies are active?"})
		require.Error(t, resp.Err)
		assert.Equal(t, "Error processing query: query classification failed: model unavailable", resp.Answer)
		assert.Zero(t, f.sqlLLM.Calls())
	})

	t.Run("execution error is sanitized and not synthesized", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{sqlLLM: llm.NewMockLLM("SELECT headcount FROM company")})
		resp := f.system.ProcessQuery(ctx, Query{Question: "What is the headcount?", UserID: "u1", ChatID: "c1"})
		require.Error(t, resp.Err)

		var qe *sqldb.QueryExecutionError
		require.True(t, errors.As(resp.Err, &qe))
		assert.Equal(t, sqldb.ReasonUnknownColumn, qe.Reason)
		assert.True(t, strings.HasPrefix(resp.Answer, ErrorAnswerPrefix))
		assert.NotContains(t, resp.Answer, "headcount")
		assert.Empty(t, resp.SQLQuery)
		assert.Zero(t, f.answerLLM.Calls())

		_, err := f.chats.GetChat(ctx, "u1", "c1")
		assert.ErrorIs(t, err, chatstore.ErrChatNotFound)
	})

	t.Run("schema failure is sanitized", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{wrapDB: func(db sqldb.Database) sqldb.Database {
			return &lostConnectionDB{Database: db}
		}})
		resp := f.system.ProcessQuery(ctx, Query{Question: "How many companies are active?"})
		require.Error(t, resp.Err)

		assert.Equal(t, "Error processing query: generating_sql: failed to describe schema: query execution failed: database error", resp.Answer)
		for _, leak := range []string{"postgres", "10.0.0.5", "db.internal", "password"} {
			assert.NotContains(t, resp.Answer, leak)
		}
		assert.Zero(t, f.sqlLLM.Calls())
	})

	t.Run("a failure does not affect the next query", func(t *testing.T) {
		sqlLLM := llm.NewMockLLM("SQLQuery: " + activeCountSQL)
		sqlLLM.Errs = []error{errors.New("model timeout")}
		f := newFixture(t, fixtureOptions{sqlLLM: sqlLLM})

		failed := f.system.ProcessQuery(ctx, Query{Question: "How many companies are active?"})
		require.Error(t, failed.Err)
		var ce *sqlchain.ChainError
		require.True(t, errors.As(failed.Err, &ce))
		assert.Equal(t, sqlchain.StageGeneratingSQL, ce.Stage)

		ok := f.system.ProcessQuery(ctx, Query{Question: "How many companies are active?"})
		require.NoError(t, ok.Err)
		assert.Equal(t, "There are 6 active companies.", ok.Answer)
	})

	t.Run("deadline", func(t *testing.T) {
		assert.Equal(t, "Error processing query: the request timed out",
			ErrorAnswer(&sqlchain.ChainError{Stage: sqlchain.StageSynthesizing, Err: context.DeadlineExceeded}))
	})
}

func TestSystem_Observer(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, fixtureOptions{observer: obs})
	ctx := context.Background()

	f.system.ProcessQuery(ctx, Query{Question: "How many companies are active?"})
	f.system.ProcessQuery(ctx, Query{Question: ""})

	assert.Equal(t, []string{"structured"}, obs.routes)
	assert.Equal(t, 2, obs.started)
	assert.Equal(t, 2, obs.finished)
}

func collect(ch <-chan sqlchain.Event) []sqlchain.Event {
	var events []sqlchain.Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestSystem_ProcessQueryStream(t *testing.T) {
	ctx := context.Background()

	t.Run("structured answer", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		resp, ch := f.system.ProcessQueryStream(ctx, Query{Question: "How many companies are active?", ChatID: "c9"})
		events := collect(ch)
		require.GreaterOrEqual(t, len(events), 4)

		assert.Equal(t, sqlchain.Event{Type: sqlchain.EventChatID, Content: "c9"}, events[0])
		var text strings.Builder
		var sql string
		for _, e := range events[1 : len(events)-1] {
			switch e.Type {
			case sqlchain.EventText:
				text.WriteString(e.Content)
			case sqlchain.EventSQLQuery:
				sql = e.Content
			}
		}
		assert.Equal(t, resp.Answer, text.String())
		assert.Equal(t, activeCountSQL, sql)
		assert.Equal(t, sqlchain.Event{Type: sqlchain.EventMessageID, Content: resp.MessageID}, events[len(events)-1])
	})

	t.Run("unstructured answer has no sql event", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{routerLLM: llm.NewMockLLM("UNSTRUCTURED")})
		_, ch := f.system.ProcessQueryStream(ctx, Query{Question: "Who knows React?"})
		for _, e := range collect(ch) {
			assert.NotEqual(t, sqlchain.EventSQLQuery, e.Type)
		}
	})

	t.Run("failure", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		resp, ch := f.system.ProcessQueryStream(ctx, Query{ChatID: "c3"})
		events := collect(ch)
		require.Len(t, events, 2)
		assert.Equal(t, sqlchain.EventChatID, events[0].Type)
		assert.Equal(t, sqlchain.Event{Type: sqlchain.EventError, Content: resp.Answer}, events[1])
	})
}
