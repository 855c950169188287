package objectclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
)

// New builds the storage backend selected by cfg.Type. Missing or conflicting
// settings fail here, before any stage runs.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (core.Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Type {
	case config.StorageLocal:
		if cfg.S3Bucket != "" || cfg.GCSBucket != "" {
			return nil, core.NewConfigError("STORAGE_TYPE", "local storage cannot be combined with a bucket name")
		}
		return NewLocalStorage(cfg.LocalBasePath, logger)
	case config.StorageS3:
		if cfg.LocalBasePath != "" || cfg.GCSBucket != "" {
			return nil, core.NewConfigError("STORAGE_TYPE", "s3 storage cannot be combined with another backend")
		}
		return NewS3Client(ctx, cfg, logger)
	case config.StorageGCS:
		if cfg.LocalBasePath != "" || cfg.S3Bucket != "" {
			return nil, core.NewConfigError("STORAGE_TYPE", "gcs storage cannot be combined with another backend")
		}
		return NewGCSClient(ctx, cfg.GCSBucket, logger)
	default:
		return nil, core.NewConfigError("STORAGE_TYPE", fmt.Sprintf("unsupported storage type %q", cfg.Type))
	}
}

// Encode turns a WriteFile payload into bytes. Raw bytes, strings and readers are
// kept as given; everything else (maps, slices, structs) is written as indented JSON.
func Encode(content any) ([]byte, string, error) {
	switch v := content.(type) {
	case []byte:
		return v, "application/octet-stream", nil
	case string:
		return []byte(v), "text/plain; charset=utf-8", nil
	case io.Reader:
		b, err := io.ReadAll(v)
		if err != nil {
			return nil, "", fmt.Errorf("read content: %w", err)
		}
		return b, "application/octet-stream", nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return nil, "", fmt.Errorf("encode json: %w", err)
		}
		return buf.Bytes(), "application/json", nil
	}
}

// objectKey joins a logical folder and name into a clean, slash-separated key.
func objectKey(parts ...string) string {
	key := path.Join(parts...)
	return strings.TrimPrefix(key, "/")
}

// folderPrefix turns a logical folder into a listing prefix ending in "/".
func folderPrefix(folder string) string {
	p := objectKey(folder)
	if p == "" || p == "." {
		return ""
	}
	return p + "/"
}

func decodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
