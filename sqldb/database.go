// Package sqldb is the relational store boundary of the structured pipeline:
// pooled connections, schema introspection restricted to an allow-list, a
// read-only statement guard and text serialization of results.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Dialect names the SQL flavour of a Database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Column describes one table column.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

// Database is a pooled relational store.
type Database interface {
	// Dialect returns the SQL flavour spoken by the store.
	Dialect() Dialect
	// Tables lists the user tables of the store.
	Tables(ctx context.Context) ([]string, error)
	// Columns returns the columns of table in declaration order.
	Columns(ctx context.Context, table string) ([]Column, error)
	// Query runs a read statement on a pooled connection.
	Query(ctx context.Context, query string, args ...any) (*Result, error)
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) error
	// Close releases the pool.
	Close() error
}

// PoolConfig bounds connection checkout. It is fixed when the pool is built.
type PoolConfig struct {
	// PoolSize is the number of connections kept open.
	PoolSize int `json:"pool_size" yaml:"pool_size"`
	// MaxOverflow is the number of extra connections allowed under load.
	MaxOverflow int `json:"max_overflow" yaml:"max_overflow"`
	// PoolTimeout bounds the wait for a free connection.
	PoolTimeout time.Duration `json:"pool_timeout" yaml:"pool_timeout"`
	// ConnMaxLifetime recycles connections older than this. Zero keeps them.
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DefaultPoolConfig returns the production pool bounds.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		PoolSize:        25,
		MaxOverflow:     50,
		PoolTimeout:     45 * time.Second,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// MaxConns is the hard upper bound of open connections.
func (c PoolConfig) MaxConns() int {
	n := c.PoolSize + c.MaxOverflow
	if n < 1 {
		return 1
	}
	return n
}

var (
	// ErrPoolTimeout is returned when no connection freed up within PoolTimeout.
	ErrPoolTimeout = errors.New("timed out waiting for a database connection")
	// ErrUnknownTable is returned when introspecting a table that does not exist.
	ErrUnknownTable = errors.New("unknown table")
	// ErrMultipleStatements is returned for batches of statements.
	ErrMultipleStatements = errors.New("multiple statements are not allowed")
	// ErrReadOnly is returned for statements that would modify data or schema.
	ErrReadOnly = errors.New("only read queries are allowed")
	// ErrTableNotAllowed is returned when a statement references a table
	// outside the allow-list.
	ErrTableNotAllowed = errors.New("permission denied")
)

// Execution failure reasons safe to show to end users.
const (
	ReasonPermissionDenied = "permission denied"
	ReasonReadOnly         = "read-only violation"
	ReasonUnknownColumn    = "unknown column"
	ReasonUnknownTable     = "unknown table"
	ReasonSyntax           = "syntax error"
	ReasonTimeout          = "database busy"
	ReasonDatabase         = "database error"
)

// QueryExecutionError wraps a failed execution. Error() only carries the
// sanitized Reason; the raw driver error stays reachable through Unwrap for
// logging.
type QueryExecutionError struct {
	Query  string
	Reason string
	Err    error
}

func (e *QueryExecutionError) Error() string {
	return "query execution failed: " + e.Reason
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// NewQueryExecutionError classifies a driver error into a sanitized reason.
func NewQueryExecutionError(query string, err error) *QueryExecutionError {
	return &QueryExecutionError{Query: query, Reason: classify(err), Err: err}
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrTableNotAllowed):
		return ReasonPermissionDenied
	case errors.Is(err, ErrReadOnly), errors.Is(err, ErrMultipleStatements):
		return ReasonReadOnly
	case errors.Is(err, ErrPoolTimeout):
		return ReasonTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such column"),
		strings.Contains(msg, "column") && strings.Contains(msg, "does not exist"):
		return ReasonUnknownColumn
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"):
		return ReasonUnknownTable
	case strings.Contains(msg, "syntax error"), strings.Contains(msg, "incomplete input"):
		return ReasonSyntax
	case strings.Contains(msg, "readonly database"), strings.Contains(msg, "read-only transaction"):
		return ReasonReadOnly
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "not authorized"):
		return ReasonPermissionDenied
	default:
		return ReasonDatabase
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func placeholder(d Dialect, i int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}
