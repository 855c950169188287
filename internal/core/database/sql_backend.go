package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"

	"github.com/markdave123-py/docpipe/internal/core"
)

// SQLBackend loads rows through database/sql. It serves the embedded engines
// (DuckDB and SQLite), which both take "?" placeholders.
type SQLBackend struct {
	db      *sql.DB
	dialect string
	tx      *sql.Tx
	log     *slog.Logger
}

var _ core.LoaderBackend = (*SQLBackend)(nil)

// OpenSQL opens dsn with the driver registered for dialect and checks the connection.
func OpenSQL(ctx context.Context, dialect, dsn string, logger *slog.Logger) (*SQLBackend, error) {
	var driver string
	switch dialect {
	case DialectDuckDB:
		driver = "duckdb"
	case DialectSQLite:
		driver = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	// Embedded engines: one writer connection keeps the transaction and
	// in-memory databases on a single handle.
	db.SetMaxOpenConns(1)

	ctxPing, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return NewSQLBackend(db, dialect, logger), nil
}

// NewSQLBackend wraps an already opened handle. The backend owns db and closes it.
func NewSQLBackend(db *sql.DB, dialect string, logger *slog.Logger) *SQLBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLBackend{db: db, dialect: dialect, log: logger}
}

func (b *SQLBackend) Dialect() string { return b.dialect }

// DB exposes the underlying handle for read-back queries.
func (b *SQLBackend) DB() *sql.DB { return b.db }

func (b *SQLBackend) begin(ctx context.Context) error {
	if b.tx != nil {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	b.tx = tx
	return nil
}

func (b *SQLBackend) CreateSchema(ctx context.Context, table string, columns []core.Column) error {
	stmts, err := schemaStatements(table, columns)
	if err != nil {
		return err
	}
	if err := b.begin(ctx); err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := b.tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema %s: %w", table, err)
		}
	}
	b.log.Debug("db.schema.created", "dialect", b.dialect, "table", table, "columns", len(columns))
	return nil
}

func (b *SQLBackend) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := b.begin(ctx); err != nil {
		return 0, err
	}

	var total int64
	step := rowsPerStatement(len(columns))
	for start := 0; start < len(rows); start += step {
		end := min(start+step, len(rows))
		q, err := buildInsert(b.dialect, table, columns, end-start)
		if err != nil {
			return total, err
		}
		args, err := flattenArgs(rows[start:end], len(columns))
		if err != nil {
			return total, err
		}
		res, err := b.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		total += rowsAffected(res, end-start)
	}
	b.log.Debug("db.insert.batch", "dialect", b.dialect, "table", table, "rows", total)
	return total, nil
}

func (b *SQLBackend) Commit(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Commit()
	b.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *SQLBackend) Rollback(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Rollback()
	b.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (b *SQLBackend) Close() error {
	if b.tx != nil {
		_ = b.tx.Rollback()
		b.tx = nil
	}
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
