package sqldb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDB implements Database on a pgx connection pool.
type PostgresDB struct {
	pool    *pgxpool.Pool
	timeout PoolConfig
	logger  *slog.Logger
}

// PostgresOption configures a PostgresDB.
type PostgresOption func(*PostgresDB)

// WithPostgresLogger sets the logger.
func WithPostgresLogger(logger *slog.Logger) PostgresOption {
	return func(p *PostgresDB) {
		p.logger = logger
	}
}

// NewPostgres creates a pgx pool bounded by cfg.
func NewPostgres(ctx context.Context, dsn string, cfg PoolConfig, opts ...PostgresOption) (*PostgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns())
	poolCfg.MinConns = int32(min(cfg.PoolSize, cfg.MaxConns()))
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	p := &PostgresDB{
		pool:    pool,
		timeout: cfg,
		logger:  slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Dialect returns DialectPostgres.
func (p *PostgresDB) Dialect() Dialect {
	return DialectPostgres
}

func (p *PostgresDB) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout.PoolTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, p.timeout.PoolTimeout)
	}
	defer cancel()

	conn, err := p.pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			p.logger.Error("Connection pool exhausted", "timeout", p.timeout.PoolTimeout, "max_conns", p.timeout.MaxConns())
			return nil, ErrPoolTimeout
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// Query runs a statement inside a read-only transaction that is always
// rolled back, and collects all rows.
func (p *PostgresDB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			p.logger.Warn("Rollback failed", "error", err)
		}
	}()

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	res := &Result{Columns: make([]string, len(fds)), Rows: [][]any{}}
	for i, fd := range fds {
		res.Columns[i] = fd.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Exec runs a statement that returns no rows.
func (p *PostgresDB) Exec(ctx context.Context, query string, args ...any) error {
	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, query, args...)
	return err
}

// Tables lists tables of the current schema.
func (p *PostgresDB) Tables(ctx context.Context) ([]string, error) {
	res, err := p.Query(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	tables := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		tables = append(tables, FormatValue(row[0]))
	}
	return tables, nil
}

// Columns reads information_schema for table.
func (p *PostgresDB) Columns(ctx context.Context, table string) ([]Column, error) {
	res, err := p.Query(ctx, `SELECT c.column_name, upper(c.data_type), c.is_nullable = 'NO',
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
				  ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
				  AND k.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	if res.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, Column{
			Name:       FormatValue(row[0]),
			Type:       FormatValue(row[1]),
			NotNull:    FormatValue(row[2]) == "true",
			PrimaryKey: FormatValue(row[3]) == "true",
		})
	}
	return cols, nil
}

// Close closes the pool.
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

var _ Database = (*PostgresDB)(nil)
