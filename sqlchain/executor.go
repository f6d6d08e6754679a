package sqlchain

import (
	"context"
	"log/slog"
	"os"

	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
)

// Execution is the outcome of a successful Execute.
type Execution struct {
	Result *sqldb.Result
	// Text is the serialized result, or sqldb.NoDataSentinel for zero rows.
	Text string
}

// Executor runs generated statements on the relational store.
type Executor struct {
	db     sqldb.Database
	guard  *sqldb.Guard
	logger *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithGuard sets the statement guard.
func WithGuard(guard *sqldb.Guard) ExecutorOption {
	return func(e *Executor) {
		e.guard = guard
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an Executor. Without WithGuard it guards with the
// allow-list policy.
func NewExecutor(db sqldb.Database, opts ...ExecutorOption) *Executor {
	e := &Executor{
		db:     db,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.guard == nil {
		e.guard = sqldb.NewGuard(sqldb.WithGuardLogger(e.logger))
	}
	return e
}

// Execute vets query against allow and runs it. Failures are returned as
// *sqldb.QueryExecutionError; the raw cause is logged, never put in the
// message.
func (e *Executor) Execute(ctx context.Context, query string, allow []string) (*Execution, error) {
	if _, err := e.guard.Check(ctx, query, allow); err != nil {
		return nil, e.fail(query, err)
	}

	res, err := e.db.Query(ctx, query)
	if err != nil {
		return nil, e.fail(query, err)
	}

	if res.Empty() {
		return &Execution{Result: res, Text: sqldb.NoDataSentinel}, nil
	}
	return &Execution{Result: res, Text: res.Text()}, nil
}

func (e *Executor) fail(query string, err error) error {
	qe := sqldb.NewQueryExecutionError(query, err)
	e.logger.Error("Query execution failed",
		"query", query,
		"reason", qe.Reason,
		"error", err)
	return qe
}
