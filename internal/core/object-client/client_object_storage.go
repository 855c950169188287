package objectclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
)

// s3API is the slice of the S3 client the adapter uses.
type s3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Client struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	log      *slog.Logger
}

var _ core.Storage = (*S3Client)(nil)

func NewS3Client(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*S3Client, error) {
	if cfg.S3Bucket == "" {
		return nil, core.NewConfigError("S3_BUCKET_NAME", "must be provided for S3 storage")
	}
	if cfg.AwsRegion == "" {
		return nil, core.NewConfigError("AWS_REGION", "not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AwsRegion)}
	// Static keys are optional; otherwise the default chain (env, profile, role) applies.
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("storage.s3.ready", "bucket", cfg.S3Bucket, "region", cfg.AwsRegion)
	return newS3Client(s3.NewFromConfig(awsCfg), cfg.S3Bucket, logger), nil
}

func newS3Client(api s3API, bucket string, logger *slog.Logger) *S3Client {
	return &S3Client{
		client:   api,
		uploader: manager.NewUploader(api),
		bucket:   bucket,
		log:      logger,
	}
}

func (c *S3Client) ListFiles(ctx context.Context, folder, ext string) ([]string, error) {
	prefix := folderPrefix(folder)
	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	keys := []string{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			c.log.Error("storage.s3.list_failed", "bucket", c.bucket, "prefix", prefix, "error", err)
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if ext == "" || strings.HasSuffix(strings.ToLower(key), strings.ToLower(ext)) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *S3Client) ReadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := c.client.GetObject(ctxGet, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		c.log.Error("storage.s3.read_failed", "bucket", c.bucket, "key", key, "error", err)
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	defer resp.Body.Close()

	// Buffer the body so the caller is not tied to the request timeout.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error("storage.s3.read_failed", "bucket", c.bucket, "key", key, "error", err)
		return nil, fmt.Errorf("read body: %w", err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// WriteFile uploads content and returns its s3:// URI.
func (c *S3Client) WriteFile(ctx context.Context, key string, content any) (string, error) {
	data, contentType, err := Encode(content)
	if err != nil {
		return "", err
	}

	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	_, err = c.uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		c.log.Error("storage.s3.write_failed", "bucket", c.bucket, "key", key, "error", err)
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", c.bucket, key), nil
}

func (c *S3Client) ReadJSON(ctx context.Context, key string, v any) error {
	rc, err := c.ReadFile(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := decodeJSON(rc, v); err != nil {
		c.log.Error("storage.s3.json_failed", "bucket", c.bucket, "key", key, "error", err)
		return err
	}
	return nil
}

func (c *S3Client) FullPath(folder string) (string, error) {
	return fmt.Sprintf("s3://%s/%s", c.bucket, objectKey(folder)), nil
}

func (c *S3Client) Close() error { return nil }
