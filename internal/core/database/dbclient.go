package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
)

const (
	DialectDuckDB   = "duckdb"
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// maxRowsPerStatement caps a single multi-row INSERT; larger batches are split
// into several statements inside the same transaction.
const maxRowsPerStatement = 1000

// maxParams keeps one statement below the bind-variable limits of every backend.
const maxParams = 30000

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	typeRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ,()\[\]]*$`)
)

// New opens the loader backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (core.LoaderBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case config.BackendDuckDB:
		if cfg.DuckDBPath == "" {
			return nil, core.NewConfigError("DUCKDB_PATH", "must be provided for the duckdb backend")
		}
		return OpenSQL(ctx, DialectDuckDB, cfg.DuckDBPath, logger)
	case config.BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, core.NewConfigError("SQLITE_PATH", "must be provided for the sqlite backend")
		}
		return OpenSQL(ctx, DialectSQLite, cfg.SQLitePath, logger)
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, core.NewConfigError("DATABASE_URL", "must be provided for the postgres backend")
		}
		return NewPostgresBackend(ctx, cfg.DatabaseURL, logger)
	default:
		return nil, core.NewConfigError("DB_BACKEND", fmt.Sprintf("unsupported backend %q", cfg.Backend))
	}
}

// DefaultSchema is the table layout used when the prompt configuration declares no columns.
func DefaultSchema() []core.Column {
	return []core.Column{
		{Name: "document_id", Type: "VARCHAR"},
		{Name: "filename", Type: "VARCHAR"},
		{Name: "title", Type: "TEXT"},
		{Name: "author", Type: "VARCHAR"},
		{Name: "content_summary", Type: "TEXT"},
		{Name: "metadata", Type: "JSON"},
	}
}

// IsJSONType reports whether values of a column must be stored as serialized JSON.
func IsJSONType(sqlType string) bool {
	t := strings.ToUpper(strings.TrimSpace(sqlType))
	return t == "JSON" || t == "JSONB"
}

// IsTextType reports whether a column holds character data.
func IsTextType(sqlType string) bool {
	t := strings.ToUpper(strings.TrimSpace(sqlType))
	for _, p := range []string{"VARCHAR", "TEXT", "CHAR", "STRING", "CHARACTER"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// ValidIdentifier reports whether name is safe to splice into SQL as a table or column.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

func quoteIdent(name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func validateType(t string) error {
	if !typeRe.MatchString(strings.TrimSpace(t)) {
		return fmt.Errorf("invalid column type %q", t)
	}
	return nil
}

// rowsPerStatement returns how many rows fit in one INSERT for the given column count.
func rowsPerStatement(ncols int) int {
	if ncols <= 0 {
		return maxRowsPerStatement
	}
	n := maxParams / ncols
	if n > maxRowsPerStatement {
		n = maxRowsPerStatement
	}
	if n < 1 {
		n = 1
	}
	return n
}

// buildInsert renders a parameterized multi-row INSERT for nrows rows.
func buildInsert(dialect, table string, columns []string, nrows int) (string, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	qcols := make([]string, len(columns))
	for i, c := range columns {
		if qcols[i], err = quoteIdent(c); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", qt, strings.Join(qcols, ", "))
	n := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			if dialect == DialectPostgres {
				fmt.Fprintf(&b, "$%d", n)
			} else {
				b.WriteByte('?')
			}
			n++
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}

// flattenArgs lays rows out as one positional argument list.
func flattenArgs(rows [][]any, ncols int) ([]any, error) {
	args := make([]any, 0, len(rows)*ncols)
	for i, r := range rows {
		if len(r) != ncols {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), ncols)
		}
		args = append(args, r...)
	}
	return args, nil
}

func rowsAffected(res sql.Result, fallback int) int64 {
	n, err := res.RowsAffected()
	if err != nil || n < 0 {
		return int64(fallback)
	}
	return n
}
