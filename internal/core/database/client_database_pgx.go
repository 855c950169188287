package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markdave123-py/docpipe/internal/core"
)

// PostgresBackend loads rows into PostgreSQL over a pgx pool.
type PostgresBackend struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
	log  *slog.Logger
}

var _ core.LoaderBackend = (*PostgresBackend)(nil)

func NewPostgresBackend(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresBackend, error) {
	if databaseURL == "" {
		return nil, core.NewConfigError("DATABASE_URL", "is empty")
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, &core.ConfigError{Key: "DATABASE_URL", Message: "invalid connection string", Cause: err}
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBackend{pool: pool, log: logger}, nil
}

func (p *PostgresBackend) Dialect() string { return DialectPostgres }

func (p *PostgresBackend) begin(ctx context.Context) error {
	if p.tx != nil {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	p.tx = tx
	return nil
}

func (p *PostgresBackend) CreateSchema(ctx context.Context, table string, columns []core.Column) error {
	stmts, err := schemaStatements(table, columns)
	if err != nil {
		return err
	}
	if err := p.begin(ctx); err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := p.tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema %s: %w", table, err)
		}
	}
	p.log.Debug("db.schema.created", "dialect", DialectPostgres, "table", table, "columns", len(columns))
	return nil
}

func (p *PostgresBackend) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := p.begin(ctx); err != nil {
		return 0, err
	}

	var total int64
	step := rowsPerStatement(len(columns))
	for start := 0; start < len(rows); start += step {
		end := min(start+step, len(rows))
		q, err := buildInsert(DialectPostgres, table, columns, end-start)
		if err != nil {
			return total, err
		}
		args, err := flattenArgs(rows[start:end], len(columns))
		if err != nil {
			return total, err
		}
		tag, err := p.tx.Exec(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}
	p.log.Debug("db.insert.batch", "dialect", DialectPostgres, "table", table, "rows", total)
	return total, nil
}

func (p *PostgresBackend) Commit(ctx context.Context) error {
	if p.tx == nil {
		return nil
	}
	err := p.tx.Commit(ctx)
	p.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Rollback(ctx context.Context) error {
	if p.tx == nil {
		return nil
	}
	err := p.tx.Rollback(ctx)
	p.tx = nil
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Close() error {
	if p.tx != nil {
		_ = p.tx.Rollback(context.Background())
		p.tx = nil
	}
	p.pool.Close()
	return nil
}
