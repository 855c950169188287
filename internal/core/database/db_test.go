package db

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
)

func newSQLite(t *testing.T) *SQLBackend {
	t.Helper()
	b, err := OpenSQL(context.Background(), DialectSQLite, ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestBuildInsert(t *testing.T) {
	q, err := buildInsert(DialectPostgres, "documents", []string{"document_id", "title"}, 2)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "documents" ("document_id", "title") VALUES ($1, $2), ($3, $4)`, q)

	q, err = buildInsert(DialectDuckDB, "documents", []string{"a"}, 3)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "documents" ("a") VALUES (?), (?), (?)`, q)
}

func TestIdentifierValidation(t *testing.T) {
	for _, bad := range []string{"", "1abc", "docs; DROP TABLE x", `a"b`, "has space"} {
		assert.False(t, ValidIdentifier(bad), bad)
	}
	for _, good := range []string{"documents", "_tmp", "esg_reports_2024"} {
		assert.True(t, ValidIdentifier(good), good)
	}

	_, err := buildInsert(DialectSQLite, "docs--", []string{"a"}, 1)
	assert.Error(t, err)
}

func TestSchemaStatements(t *testing.T) {
	stmts, err := schemaStatements("documents", DefaultSchema())
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, `DROP TABLE IF EXISTS "documents"`, stmts[0])
	assert.Contains(t, stmts[1], `"metadata" JSON`)

	_, err = schemaStatements("documents", nil)
	assert.Error(t, err)

	_, err = schemaStatements("documents", []core.Column{{Name: "a", Type: "TEXT); DROP TABLE x; --"}})
	assert.Error(t, err)

	_, err = schemaStatements("documents", []core.Column{{Name: "a", Type: "TEXT"}, {Name: "A", Type: "TEXT"}})
	assert.Error(t, err)
}

func TestTypeHelpers(t *testing.T) {
	assert.True(t, IsJSONType("json"))
	assert.True(t, IsJSONType(" JSONB "))
	assert.False(t, IsJSONType("TEXT"))
	assert.True(t, IsTextType("VARCHAR(255)"))
	assert.False(t, IsTextType("INTEGER"))
}

func TestRowsPerStatement(t *testing.T) {
	assert.Equal(t, maxRowsPerStatement, rowsPerStatement(6))
	assert.Equal(t, 300, rowsPerStatement(100))
}

func TestSQLBackend_CreateInsertCommit(t *testing.T) {
	b := newSQLite(t)
	ctx := context.Background()
	cols := []core.Column{{Name: "document_id", Type: "VARCHAR"}, {Name: "title", Type: "TEXT"}}

	require.NoError(t, b.CreateSchema(ctx, "documents", cols))
	n, err := b.InsertBatch(ctx, "documents", []string{"document_id", "title"}, [][]any{
		{"d1", "First"},
		{"d2", "Second"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, b.Commit(ctx))

	assert.Equal(t, 2, countRows(t, b.DB(), "documents"))
}

func TestSQLBackend_LargeBatchIsChunked(t *testing.T) {
	b := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, b.CreateSchema(ctx, "big", []core.Column{{Name: "id", Type: "INTEGER"}}))
	rows := make([][]any, 2500)
	for i := range rows {
		rows[i] = []any{i}
	}
	n, err := b.InsertBatch(ctx, "big", []string{"id"}, rows)
	require.NoError(t, err)
	assert.EqualValues(t, 2500, n)
	require.NoError(t, b.Commit(ctx))
	assert.Equal(t, 2500, countRows(t, b.DB(), "big"))
}

func TestSQLBackend_RollbackDiscardsRows(t *testing.T) {
	b := newSQLite(t)
	ctx := context.Background()
	cols := []core.Column{{Name: "id", Type: "TEXT"}}

	require.NoError(t, b.CreateSchema(ctx, "t", cols))
	_, err := b.InsertBatch(ctx, "t", []string{"id"}, [][]any{{"keep"}})
	require.NoError(t, err)
	require.NoError(t, b.Commit(ctx))

	require.NoError(t, b.CreateSchema(ctx, "t", cols))
	_, err = b.InsertBatch(ctx, "t", []string{"id"}, [][]any{{"a"}, {"b"}})
	require.NoError(t, err)
	require.NoError(t, b.Rollback(ctx))

	assert.Equal(t, 1, countRows(t, b.DB(), "t"))
}

func TestSQLBackend_RowWidthMismatch(t *testing.T) {
	b := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, b.CreateSchema(ctx, "t", []core.Column{{Name: "a", Type: "TEXT"}, {Name: "b", Type: "TEXT"}}))
	_, err := b.InsertBatch(ctx, "t", []string{"a", "b"}, [][]any{{"only-one"}})
	assert.Error(t, err)
	require.NoError(t, b.Rollback(ctx))
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []config.DatabaseConfig{
		{Backend: config.BackendDuckDB},
		{Backend: config.BackendSQLite},
		{Backend: config.BackendPostgres},
		{Backend: "oracle"},
	}
	for _, cfg := range tests {
		t.Run(cfg.Backend, func(t *testing.T) {
			_, err := New(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfig)
		})
	}
}

func TestNew_SQLite(t *testing.T) {
	b, err := New(context.Background(), config.DatabaseConfig{Backend: config.BackendSQLite, SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, DialectSQLite, b.Dialect())
}
