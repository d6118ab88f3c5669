// Package objectstore downloads dataset content addressed by s3:// URLs
// from any S3 compatible store.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
)

var ErrMissingEndpoint = errors.New("object store endpoint not configured")

// Config holds the connection settings for the store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// ParseS3URL splits s3://bucket/key into its bucket and key.
func ParseS3URL(rawURL string) (bucket, key string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}

// Fetcher is a dataset.ContentFetcher for s3:// URLs.
type Fetcher struct {
	client *minio.Client
	logger *slog.Logger
}

// NewFetcher connects a minio client for cfg. A nil logger uses
// slog.Default().
func NewFetcher(cfg Config, logger *slog.Logger) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &Fetcher{client: client, logger: logger.With("component", "objectstore")}, nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, ok := ParseS3URL(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnsupportedURL, rawURL)
	}
	f.logger.Debug("Downloading object", "bucket", bucket, "key", key)

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return b, nil
}
