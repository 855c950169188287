package objectclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/markdave123-py/docpipe/internal/core"
)

// gcsAPI is the slice of a GCS bucket the adapter uses.
type gcsAPI interface {
	ObjectNames(ctx context.Context, prefix string) ([]string, error)
	NewReader(ctx context.Context, name string) (io.ReadCloser, error)
	NewWriter(ctx context.Context, name, contentType string) io.WriteCloser
	Close() error
}

// gcsBucket adapts a real *gcs.Client bucket to gcsAPI.
type gcsBucket struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

func (b gcsBucket) ObjectNames(ctx context.Context, prefix string) ([]string, error) {
	it := b.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	names := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
}

func (b gcsBucket) NewReader(ctx context.Context, name string) (io.ReadCloser, error) {
	return b.bucket.Object(name).NewReader(ctx)
}

func (b gcsBucket) NewWriter(ctx context.Context, name, contentType string) io.WriteCloser {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (b gcsBucket) Close() error { return b.client.Close() }

// GCSClient stores objects in a Google Cloud Storage bucket.
type GCSClient struct {
	api  gcsAPI
	name string
	log  *slog.Logger
}

var _ core.Storage = (*GCSClient)(nil)

func NewGCSClient(ctx context.Context, bucket string, logger *slog.Logger) (*GCSClient, error) {
	if bucket == "" {
		return nil, core.NewConfigError("GCS_BUCKET_NAME", "must be provided for GCS storage")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("storage.gcs.ready", "bucket", bucket)
	return newGCSClient(gcsBucket{client: client, bucket: client.Bucket(bucket)}, bucket, logger), nil
}

func newGCSClient(api gcsAPI, bucket string, logger *slog.Logger) *GCSClient {
	return &GCSClient{api: api, name: bucket, log: logger}
}

func (c *GCSClient) ListFiles(ctx context.Context, folder, ext string) ([]string, error) {
	all, err := c.api.ObjectNames(ctx, folderPrefix(folder))
	if err != nil {
		c.log.Error("storage.gcs.list_failed", "bucket", c.name, "folder", folder, "error", err)
		return nil, fmt.Errorf("gcs list failed: %w", err)
	}
	names := []string{}
	for _, name := range all {
		if strings.HasSuffix(name, "/") {
			continue
		}
		if ext == "" || strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *GCSClient) ReadFile(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := c.api.NewReader(ctx, name)
	if err != nil {
		c.log.Error("storage.gcs.read_failed", "bucket", c.name, "object", name, "error", err)
		return nil, fmt.Errorf("gcs read failed: %w", err)
	}
	return r, nil
}

func (c *GCSClient) WriteFile(ctx context.Context, name string, content any) (string, error) {
	data, contentType, err := Encode(content)
	if err != nil {
		return "", err
	}
	w := c.api.NewWriter(ctx, name, contentType)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		c.log.Error("storage.gcs.write_failed", "bucket", c.name, "object", name, "error", err)
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		c.log.Error("storage.gcs.write_failed", "bucket", c.name, "object", name, "error", err)
		return "", fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", c.name, name), nil
}

func (c *GCSClient) ReadJSON(ctx context.Context, name string, v any) error {
	rc, err := c.ReadFile(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return decodeJSON(rc, v)
}

func (c *GCSClient) FullPath(folder string) (string, error) {
	return fmt.Sprintf("gs://%s/%s", c.name, objectKey(folder)), nil
}

func (c *GCSClient) Close() error {
	return c.api.Close()
}
