package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AttachmentStore stores chat attachments in a private bucket and hands out
// short-lived download links.
type AttachmentStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (objectKey string, err error)
	DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Client wraps a MinIO/S3 client.
type Client struct {
	bucket      string
	client      *minio.Client
	logger      *slog.Logger
	bucketMu    sync.Mutex
	bucketReady bool

	// checkBucket and makeBucket are swapped out by tests.
	checkBucket func(ctx context.Context) (bool, error)
	makeBucket  func(ctx context.Context) error
}

// NewClient configures an attachment store using the provided endpoint and credentials.
func NewClient(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*Client, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	return &Client{
		bucket: bucket,
		client: minioClient,
		logger: logger,
	}, nil
}

// Upload stores the content and returns the object key. The bucket stays
// private; callers fetch through DownloadURL.
func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if err := c.ensureBucket(ctx); err != nil {
		return "", err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.client.PutObject(ctx, c.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("s3 upload completed", "bucket", c.bucket, "key", key)
	}
	return key, nil
}

// DownloadURL returns a presigned GET link valid for ttl.
func (c *Client) DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	presigned, err := c.client.PresignedGetObject(ctx, c.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("s3: presign object: %w", err)
	}
	return presigned.String(), nil
}

// NoopStore fails fast when S3 is unavailable.
type NoopStore struct{}

func (NoopStore) Upload(_ context.Context, _ string, _ io.Reader, _ string) (string, error) {
	return "", errors.New("s3 attachment store is not configured")
}

func (NoopStore) DownloadURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("s3 attachment store is not configured")
}

// ensureBucket checks the bucket once per process, but only latches success:
// a transient failure here is retried on the next upload.
func (c *Client) ensureBucket(ctx context.Context) error {
	c.bucketMu.Lock()
	defer c.bucketMu.Unlock()
	if c.bucketReady {
		return nil
	}
	check := c.checkBucket
	if check == nil {
		check = func(ctx context.Context) (bool, error) {
			return c.client.BucketExists(ctx, c.bucket)
		}
	}
	create := c.makeBucket
	if create == nil {
		create = func(ctx context.Context) error {
			return c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
		}
	}

	exists, err := check(ctx)
	if err != nil {
		return fmt.Errorf("s3: check bucket: %w", err)
	}
	if !exists {
		if err := create(ctx); err != nil {
			return fmt.Errorf("s3: create bucket: %w", err)
		}
	}
	c.bucketReady = true
	return nil
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ AttachmentStore = (*Client)(nil)
var _ AttachmentStore = NoopStore{}
