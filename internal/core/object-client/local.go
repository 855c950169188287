package objectclient

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/markdave123-py/docpipe/internal/core"
)

// LocalStorage keeps files under a root directory on disk.
type LocalStorage struct {
	root string
	log  *slog.Logger
}

var _ core.Storage = (*LocalStorage)(nil)

func NewLocalStorage(root string, logger *slog.Logger) (*LocalStorage, error) {
	if root == "" {
		return nil, core.NewConfigError("LOCAL_STORAGE_PATH", "must be provided for local storage")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &core.ConfigError{Key: "LOCAL_STORAGE_PATH", Message: "cannot resolve path", Cause: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &core.ConfigError{Key: "LOCAL_STORAGE_PATH", Message: "cannot create root", Cause: err}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStorage{root: abs, log: logger}, nil
}

func (s *LocalStorage) resolve(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

func (s *LocalStorage) ListFiles(ctx context.Context, folder, ext string) ([]string, error) {
	base := s.resolve(folder)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		s.log.Warn("storage.list.missing_folder", "folder", base)
		return []string{}, nil
	}

	files := []string{}
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), strings.ToLower(ext)) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", base, err)
	}
	sort.Strings(files)
	return files, nil
}

func (s *LocalStorage) ReadFile(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}

func (s *LocalStorage) WriteFile(_ context.Context, p string, content any) (string, error) {
	data, _, err := Encode(content)
	if err != nil {
		return "", err
	}
	full := s.resolve(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", p, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return full, nil
}

func (s *LocalStorage) ReadJSON(ctx context.Context, p string, v any) error {
	rc, err := s.ReadFile(ctx, p)
	if err != nil {
		return err
	}
	defer rc.Close()
	return decodeJSON(rc, v)
}

// FullPath returns the absolute directory for folder, creating it if needed.
func (s *LocalStorage) FullPath(folder string) (string, error) {
	full := s.resolve(folder)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", full, err)
	}
	return full, nil
}

func (s *LocalStorage) Close() error { return nil }
