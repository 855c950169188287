package objectclient

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
)

func newLocal(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewLocalStorage(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s, root
}

func TestLocalStorage_ListFilesRecursive(t *testing.T) {
	s, root := newLocal(t)
	ctx := context.Background()

	for _, p := range []string{"raw/a.pdf", "raw/nested/b.PDF", "raw/notes.txt", "other/c.pdf"} {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}

	files, err := s.ListFiles(ctx, "raw", ".pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/a.pdf", "raw/nested/b.PDF"}, files)

	all, err := s.ListFiles(ctx, "raw", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalStorage_ListMissingFolder(t *testing.T) {
	s, _ := newLocal(t)

	files, err := s.ListFiles(context.Background(), "does-not-exist", ".pdf")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalStorage_WriteAndRead(t *testing.T) {
	s, root := newLocal(t)
	ctx := context.Background()

	loc, err := s.WriteFile(ctx, "out/deep/hello.txt", "hello")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "out", "deep", "hello.txt"), loc)

	rc, err := s.ReadFile(ctx, "out/deep/hello.txt")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestLocalStorage_JSONRoundTrip(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	type doc struct {
		Filename       string    `json:"filename"`
		Content        string    `json:"content"`
		ExtractionDate time.Time `json:"extraction_date"`
	}
	in := doc{Filename: "a.pdf", Content: "hello", ExtractionDate: ts}

	_, err := s.WriteFile(ctx, "s1/a.json", in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, s.ReadJSON(ctx, "s1/a.json", &out))
	assert.Equal(t, in.Filename, out.Filename)
	assert.Equal(t, in.Content, out.Content)
	assert.True(t, in.ExtractionDate.Equal(out.ExtractionDate))
}

func TestLocalStorage_FullPathCreatesFolder(t *testing.T) {
	s, root := newLocal(t)

	p, err := s.FullPath("s2_structured_info")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "s2_structured_info"), p)
	assert.DirExists(t, p)
}

func TestNew_RejectsMisconfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{"local without root", config.StorageConfig{Type: config.StorageLocal}},
		{"local with bucket", config.StorageConfig{Type: config.StorageLocal, LocalBasePath: "x", S3Bucket: "b"}},
		{"s3 with root", config.StorageConfig{Type: config.StorageS3, S3Bucket: "b", LocalBasePath: "x"}},
		{"gcs without bucket", config.StorageConfig{Type: config.StorageGCS}},
		{"unknown type", config.StorageConfig{Type: "ftp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfig)
		})
	}
}

func TestEncode(t *testing.T) {
	b, ct, err := Encode([]byte{0x25, 0x50})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x25, 0x50}, b)
	assert.Equal(t, "application/octet-stream", ct)

	b, _, err = Encode("plain <text>")
	require.NoError(t, err)
	assert.Equal(t, "plain <text>", string(b))

	b, ct, err = Encode(map[string]any{"title": "A & B"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", ct)
	assert.JSONEq(t, `{"title":"A & B"}`, string(b))
	assert.Contains(t, string(b), "A & B")
}

func TestFolderPrefix(t *testing.T) {
	assert.Equal(t, "", folderPrefix(""))
	assert.Equal(t, "", folderPrefix("/"))
	assert.Equal(t, "raw/", folderPrefix("raw"))
	assert.Equal(t, "raw/2024/", folderPrefix("/raw/2024/"))
}
