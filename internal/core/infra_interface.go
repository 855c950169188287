package core

import (
	"context"
	"io"
)

// Storage is the uniform file surface over local disk and object stores.
// Paths are logical: relative to the configured root or bucket.
type Storage interface {
	// ListFiles walks folder recursively and returns the paths ending in ext ("" matches all).
	ListFiles(ctx context.Context, folder, ext string) ([]string, error)
	ReadFile(ctx context.Context, path string) (io.ReadCloser, error)
	// WriteFile persists content and returns its location. []byte, string and io.Reader
	// are written as-is; any other value is serialized to JSON.
	WriteFile(ctx context.Context, path string, content any) (location string, err error)
	ReadJSON(ctx context.Context, path string, v any) error
	// FullPath resolves a logical folder to a filesystem path or object URI.
	FullPath(folder string) (string, error)
	Close() error
}

// Column is one entry of a table schema.
type Column struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
	// Source is the dotted path inside the structured payload; defaults to Name.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// LoaderBackend is the capability set the database loader needs from a SQL engine.
// Calls between the first CreateSchema/InsertBatch and Commit share one transaction.
type LoaderBackend interface {
	CreateSchema(ctx context.Context, table string, columns []Column) error
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Dialect() string
	Close() error
}
