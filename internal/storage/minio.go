// Package storage uploads run snapshots to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/framehound/framehound/internal/config"
)

// ImageStore persists an encoded image under a key and returns a URL
// where it can be fetched.
type ImageStore interface {
	SaveSnapshot(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// MinioStore is the MinIO-backed ImageStore.
type MinioStore struct {
	logger  zerolog.Logger
	client  *minio.Client
	bucket  string
	baseURL *url.URL
	useSSL  bool
}

var _ ImageStore = (*MinioStore)(nil)

// NewMinioStore connects to the configured endpoint and ensures the
// bucket exists.
func NewMinioStore(logger zerolog.Logger, cfg config.SnapshotConfig) (*MinioStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("snapshot store: access key and secret key are required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot store: create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := cli.BucketExists(ctx, cfg.Bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("snapshot store: bucket %s: %w", cfg.Bucket, err)
		}
	}

	var base *url.URL
	if cfg.PublicBaseURL != "" {
		base, err = url.Parse(cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("snapshot store: invalid public base URL: %w", err)
		}
	}

	log := logger.With().Str("component", "snapshot-store").Logger()
	log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("connected to object storage")

	return &MinioStore{
		logger:  log,
		client:  cli,
		bucket:  cfg.Bucket,
		baseURL: base,
		useSSL:  cfg.UseSSL,
	}, nil
}

// SaveSnapshot uploads data and returns its public URL. The public base
// URL takes precedence over the raw endpoint address when configured.
func (s *MinioStore) SaveSnapshot(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("snapshot store: put %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("snapshot uploaded")

	if s.baseURL != nil {
		u := *s.baseURL
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + key
		return u.String(), nil
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key), nil
}
