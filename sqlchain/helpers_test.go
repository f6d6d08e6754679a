package sqlchain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSeededDB(t *testing.T) *sqldb.SQLiteDB {
	t.Helper()
	db, err := sqldb.NewSQLite(":memory:", sqldb.PoolConfig{PoolTimeout: time.Second}, sqldb.WithSQLiteLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqldb.Seed(context.Background(), db))
	return db
}

func newTestChain(t *testing.T, db sqldb.Database, sqlModel, answerModel llm.LLM, opts ...ChainOption) *Chain {
	t.Helper()
	log := quietLogger()
	gen := NewGenerator(sqlModel, sqldb.NewSchemaInspector(db), sqldb.DialectSQLite, WithGeneratorLogger(log))
	exec := NewExecutor(db, WithExecutorLogger(log))
	synth := NewSynthesizer(answerModel, WithSynthesizerLogger(log))
	return NewChain(gen, exec, synth, append([]ChainOption{WithChainLogger(log)}, opts...)...)
}

// queryCountingDB fails the test if a statement reaches the store.
type queryCountingDB struct {
	sqldb.Database
	queries int
}

func (d *queryCountingDB) Query(ctx context.Context, query string, args ...any) (*sqldb.Result, error) {
	d.queries++
	return d.Database.Query(ctx, query, args...)
}

// unreachableDB fails introspection with the text of a refused login.
type unreachableDB struct {
	sqldb.Database
}

func (unreachableDB) Columns(ctx context.Context, table string) ([]sqldb.Column, error) {
	return nil, errors.New("failed to connect to user=postgres database=businessops: 10.0.0.5:5432 (db.internal): password authentication failed")
}
