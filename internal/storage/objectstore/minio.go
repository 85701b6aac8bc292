package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"roadwatch/internal/config"
	"roadwatch/pkg/e"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps photos in one bucket and hands out public URLs for them.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  *slog.Logger
}

func NewMinio(ctx context.Context, cfg config.MinioConfig, logger *slog.Logger) (*MinioStore, error) {
	const op = "objectstore.NewMinio"

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Error("Failed to create minio client", slog.String("error", err.Error()))
		return nil, e.Wrap(op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		logger.Error("Failed to reach minio", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %v: %w", op, err, e.ErrObjectStoreUnavailable)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			logger.Error("Failed to create bucket", slog.String("bucket", cfg.Bucket), slog.String("error", err.Error()))
			return nil, fmt.Errorf("%s: %v: %w", op, err, e.ErrObjectStoreUnavailable)
		}
		logger.Info("Bucket created", slog.String("bucket", cfg.Bucket))
	}
	logger.Info("Connected to MinIO successfully", slog.String("bucket", cfg.Bucket))

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: BaseURL(cfg),
		logger:  logger,
	}, nil
}

// BaseURL is the prefix of every object URL handed out for the bucket.
func BaseURL(cfg config.MinioConfig) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

func (s *MinioStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	const op = "objectstore.Minio.Upload"

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("put object failed", slog.String("op", op), slog.String("key", key), slog.Any("error", err))
		return "", s.wrap(ctx, op, err)
	}
	return ObjectURL(s.baseURL, key), nil
}

func (s *MinioStore) ListUnder(ctx context.Context, prefix string) ([]string, error) {
	const op = "objectstore.Minio.ListUnder"

	urls := make([]string, 0, 4)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			s.logger.Error("list objects failed", slog.String("op", op), slog.String("prefix", prefix), slog.Any("error", obj.Err))
			return nil, s.wrap(ctx, op, obj.Err)
		}
		urls = append(urls, ObjectURL(s.baseURL, obj.Key))
	}
	return urls, nil
}

// Delete removes the object behind url. URLs outside the bucket are ignored.
func (s *MinioStore) Delete(ctx context.Context, url string) error {
	const op = "objectstore.Minio.Delete"

	key, ok := KeyFromURL(s.baseURL, url)
	if !ok {
		s.logger.Debug("foreign photo url, skipping", slog.String("url", url))
		return nil
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		s.logger.Error("remove object failed", slog.String("op", op), slog.String("key", key), slog.Any("error", err))
		return s.wrap(ctx, op, err)
	}
	return nil
}

func (s *MinioStore) wrap(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return e.WrapError(ctx, op, ctx.Err())
	}
	return fmt.Errorf("%s: %v: %w", op, err, e.ErrObjectStoreUnavailable)
}

func ObjectURL(baseURL, key string) string {
	return baseURL + "/" + strings.TrimLeft(key, "/")
}

func KeyFromURL(baseURL, url string) (string, bool) {
	prefix := baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}
