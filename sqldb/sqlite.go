package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB implements Database on database/sql with the go-sqlite3 driver.
type SQLiteDB struct {
	db     *sql.DB
	pool   PoolConfig
	logger *slog.Logger
}

// SQLiteOption configures a SQLiteDB.
type SQLiteOption func(*SQLiteDB)

// WithSQLiteLogger sets the logger.
func WithSQLiteLogger(logger *slog.Logger) SQLiteOption {
	return func(s *SQLiteDB) {
		s.logger = logger
	}
}

// NewSQLite opens a SQLite database with a bounded pool. A ":memory:" DSN is
// pinned to a single connection that never expires, otherwise every pooled
// connection would see its own empty database.
func NewSQLite(dsn string, pool PoolConfig, opts ...SQLiteOption) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dsn == ":memory:" {
		pool.PoolSize, pool.MaxOverflow, pool.ConnMaxLifetime = 1, 0, 0
	}
	db.SetMaxOpenConns(pool.MaxConns())
	db.SetMaxIdleConns(max(pool.PoolSize, 1))
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteDB{
		db:     db,
		pool:   pool,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dialect returns DialectSQLite.
func (s *SQLiteDB) Dialect() Dialect {
	return DialectSQLite
}

// acquire checks a connection out of the pool, waiting at most PoolTimeout.
// The caller must Close the connection to return it.
func (s *SQLiteDB) acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.pool.PoolTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, s.pool.PoolTimeout)
	}
	defer cancel()

	conn, err := s.db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			s.logger.Error("Connection pool exhausted", "timeout", s.pool.PoolTimeout, "max_conns", s.pool.MaxConns())
			return nil, ErrPoolTimeout
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// Query runs a statement with the connection switched to query_only, so
// the store itself refuses writes, and collects all rows.
func (s *SQLiteDB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("failed to make connection read-only: %w", err)
	}
	defer func() {
		// the connection goes back to the pool and Exec needs it writable
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); err != nil {
			s.logger.Warn("Failed to reset query_only", "error", err)
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Exec runs a statement that returns no rows.
func (s *SQLiteDB) Exec(ctx context.Context, query string, args ...any) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, query, args...)
	return err
}

// Tables lists user tables in name order.
func (s *SQLiteDB) Tables(ctx context.Context) ([]string, error) {
	res, err := s.Query(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	tables := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		tables = append(tables, FormatValue(row[0]))
	}
	return tables, nil
}

// Columns reads PRAGMA table_info for table.
func (s *SQLiteDB) Columns(ctx context.Context, table string) ([]Column, error) {
	res, err := s.Query(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	if res.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	// cid, name, type, notnull, dflt_value, pk
	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, Column{
			Name:       FormatValue(row[1]),
			Type:       strings.ToUpper(FormatValue(row[2])),
			NotNull:    FormatValue(row[3]) == "1",
			PrimaryKey: FormatValue(row[5]) != "0",
		})
	}
	return cols, nil
}

// Close closes the pool.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

var _ Database = (*SQLiteDB)(nil)
